package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	hub *memory.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := memory.NewHub()
	service := app.NewService(memory.NewStore(), hub, memory.NewResultsCache(0), app.Options{})
	server := httptest.NewServer(NewRouter(service, hub, "https://party.example", nil))
	t.Cleanup(server.Close)
	return &testServer{Server: server, hub: hub}
}

// call performs a JSON request as user and decodes the response into out
// when out is non-nil.
func (s *testServer) call(t *testing.T, method, path, user string, body any, wantStatus int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var e map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: expected status %d, got %d (%v)", method, path, wantStatus, resp.StatusCode, e)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

// setupQuiz drives a room through voting into quiz status with one player.
func (s *testServer) setupQuiz(t *testing.T) domain.Room {
	t.Helper()
	var room domain.Room
	s.call(t, http.MethodPost, "/rooms", "host", map[string]string{"hostName": "Host"}, http.StatusCreated, &room)
	s.call(t, http.MethodPost, "/join", "alice", map[string]string{"code": room.Code, "name": "Alice"}, http.StatusOK, nil)

	var movie domain.RoomMovie
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/movies", "alice", map[string]string{"movieId": "tmdb-603", "title": "The Matrix"}, http.StatusCreated, &movie)
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/movies/"+movie.ID+"/votes", "alice", map[string]bool{"vote": true}, http.StatusNoContent, nil)
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/movies/"+movie.ID+"/accept", "host", nil, http.StatusNoContent, nil)
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/start", "host", map[string]string{"scoringMode": "fixed"}, http.StatusOK, &room)
	return room
}

func TestRoomQuizFlowOverREST(t *testing.T) {
	s := newTestServer(t)
	room := s.setupQuiz(t)
	if room.Status != domain.StatusQuiz || room.ScoringMode != domain.ScoringFixed {
		t.Fatalf("unexpected room after start %+v", room)
	}

	draft := domain.QuestionDraft{Text: "Who plays Neo?", Options: []string{"Keanu Reeves", "Hugo Weaving"}, CorrectIndex: 0}
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/questions", "host", draft, http.StatusCreated, nil)

	var published []domain.Question
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/publish", "host", nil, http.StatusOK, &published)
	if len(published) != 1 || published[0].DurationSeconds != domain.DefaultDurationSeconds {
		t.Fatalf("unexpected published questions %+v", published)
	}

	var receipt domain.AnswerReceipt
	s.call(t, http.MethodPost, "/questions/"+published[0].ID+"/answers", "alice", map[string]int{"optionIndex": 0, "timeLeft": 12}, http.StatusCreated, &receipt)
	if !receipt.Correct || receipt.Score != 100 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	var errResp struct {
		Error errorBody `json:"error"`
	}
	s.call(t, http.MethodPost, "/questions/"+published[0].ID+"/answers", "alice", map[string]int{"optionIndex": 1}, http.StatusConflict, &errResp)
	if errResp.Error.Kind != domain.KindAlreadyAnswered {
		t.Fatalf("expected AlreadyAnswered, got %+v", errResp.Error)
	}

	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/finish", "host", nil, http.StatusOK, nil)

	var results domain.RoomResults
	s.call(t, http.MethodGet, "/rooms/"+room.ID+"/results", "", nil, http.StatusOK, &results)
	if results.Status != domain.StatusFinished || len(results.Scores) != 1 || results.Scores[0].Score != 100 {
		t.Fatalf("unexpected results %+v", results)
	}

	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/reset", "host", nil, http.StatusOK, &room)
	if room.Status != domain.StatusVoting {
		t.Fatalf("expected voting after reset, got %s", room.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	room := s.setupQuiz(t)

	var errResp struct {
		Error errorBody `json:"error"`
	}
	s.call(t, http.MethodGet, "/rooms/missing", "", nil, http.StatusNotFound, &errResp)
	if errResp.Error.Kind != domain.KindNotFound {
		t.Fatalf("expected NotFound, got %+v", errResp.Error)
	}

	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/publish", "alice", nil, http.StatusForbidden, nil)
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/publish", "host", nil, http.StatusConflict, &errResp)
	if errResp.Error.Kind != domain.KindNotReady {
		t.Fatalf("expected NotReady, got %+v", errResp.Error)
	}

	bad := domain.QuestionDraft{Text: "Only one option?", Options: []string{"yes"}}
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/questions", "host", bad, http.StatusUnprocessableEntity, &errResp)
	if errResp.Error.Kind != domain.KindLimitExceeded || errResp.Error.Limit != domain.MinOptions || errResp.Error.Count != 1 {
		t.Fatalf("expected LimitExceeded details, got %+v", errResp.Error)
	}

	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/start", "host", nil, http.StatusConflict, &errResp)
	if errResp.Error.Kind != domain.KindInvalidTransition || errResp.Error.Status != domain.StatusQuiz {
		t.Fatalf("expected InvalidTransition from quiz, got %+v", errResp.Error)
	}

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/rooms", bytes.NewBufferString("{"))
	req.Header.Set(UserHeader, "host")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.StatusCode)
	}
}

func TestImportReportsPartialSuccess(t *testing.T) {
	s := newTestServer(t)
	room := s.setupQuiz(t)

	drafts := make([]domain.QuestionDraft, domain.MaxQuestionsPerRoom+1)
	for i := range drafts {
		drafts[i] = domain.QuestionDraft{Text: "Q", Options: []string{"a", "b"}, DurationSeconds: 30}
	}
	var resp importResponse
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/questions/import", "host", map[string]any{"questions": drafts}, http.StatusMultiStatus, &resp)
	if len(resp.Created) != domain.MaxQuestionsPerRoom || resp.Error == nil || resp.Error.Kind != domain.KindLimitExceeded {
		t.Fatalf("unexpected import response: %d created, err %+v", len(resp.Created), resp.Error)
	}

	var questions []domain.Question
	s.call(t, http.MethodGet, "/rooms/"+room.ID+"/questions", "", nil, http.StatusOK, &questions)
	if len(questions) != domain.MaxQuestionsPerRoom {
		t.Fatalf("expected %d stored questions, got %d", domain.MaxQuestionsPerRoom, len(questions))
	}
	s.call(t, http.MethodDelete, "/rooms/"+room.ID+"/questions/"+questions[0].ID, "host", nil, http.StatusNoContent, nil)
}

func TestJoinQRRendersPNG(t *testing.T) {
	s := newTestServer(t)
	var room domain.Room
	s.call(t, http.MethodPost, "/rooms", "host", nil, http.StatusCreated, &room)

	resp, err := http.Get(s.URL + "/qr/" + room.Code)
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected qr response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png signature")
	}

	missing, err := http.Get(s.URL + "/qr/ZZZZZZ")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", missing.StatusCode)
	}
}

func TestJoinLinkPrefersPublicURL(t *testing.T) {
	api := &API{publicURL: "https://party.example/"}
	req := httptest.NewRequest(http.MethodGet, "http://internal:8080/qr/ABC234", nil)
	if got := api.joinLink(req, domain.Room{Code: "ABC234"}); got != "https://party.example/join?code=ABC234" {
		t.Fatalf("unexpected join link %q", got)
	}

	api.publicURL = ""
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := api.joinLink(req, domain.Room{Code: "ABC234"}); got != "https://internal:8080/join?code=ABC234" {
		t.Fatalf("unexpected join link %q", got)
	}
}
