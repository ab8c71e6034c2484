package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"watchparty-quiz/internal/domain"
)

func TestWebSocketPushesInvalidationsAndAcceptsAnswers(t *testing.T) {
	s := newTestServer(t)
	room := s.setupQuiz(t)
	draft := domain.QuestionDraft{Text: "Red or blue pill?", Options: []string{"red", "blue"}, CorrectIndex: 0}
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/questions", "host", draft, http.StatusCreated, nil)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?roomId=" + room.ID + "&userId=alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "subscribed")

	var published []domain.Question
	s.call(t, http.MethodPost, "/rooms/"+room.ID+"/publish", "host", nil, http.StatusOK, &published)

	_, payload := readNext(conn, t, "invalidate")
	if payload["roomId"] != room.ID || payload["topic"] != string(domain.TopicQuizQuestions) {
		t.Fatalf("unexpected invalidation %v", payload)
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": published[0].ID, "optionIndex": 0, "timeLeft": 10},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// The answer result and the quiz-results invalidation race; accept either order.
	resultSeen, invalidateSeen := false, false
	for i := 0; i < 2; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answerResult":
			resultSeen = payload["correct"] == true && payload["score"] == float64(100)
		case "invalidate":
			invalidateSeen = payload["topic"] == string(domain.TopicQuizResults)
		}
	}
	if !resultSeen || !invalidateSeen {
		t.Fatalf("expected answerResult and quiz-results invalidation, got result=%v invalidate=%v", resultSeen, invalidateSeen)
	}

	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload = readNext(conn, t, "error")
	if payload["kind"] != string(domain.KindAlreadyAnswered) {
		t.Fatalf("expected AlreadyAnswered, got %v", payload)
	}
}

func TestWebSocketRejectsNonMembers(t *testing.T) {
	s := newTestServer(t)
	room := s.setupQuiz(t)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?roomId=" + room.ID + "&userId=mallory"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
	if n := s.hub.Subscribers(room.ID); n != 0 {
		t.Fatalf("rejected socket must not subscribe, got %d", n)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func TestOutboxGivesUpAfterWriterStops(t *testing.T) {
	out := outbox{send: make(chan outboundMessage[any], 1), writerDone: make(chan struct{})}
	if !out.push(outboundMessage[any]{Type: "subscribed"}) {
		t.Fatalf("expected first frame to be queued")
	}
	close(out.writerDone)

	done := make(chan bool, 1)
	go func() { done <- out.push(outboundMessage[any]{Type: "answerResult"}) }()
	select {
	case queued := <-done:
		if queued {
			t.Fatalf("expected push to report a stopped writer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("push blocked on a full queue after the writer stopped")
	}
}
