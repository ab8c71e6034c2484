package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"watchparty-quiz/internal/domain"
)

// decode reads an optional JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// actor reads the acting user. An empty id is passed through; the service
// rejects it where identity matters.
func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

type createRoomRequest struct {
	HostName string `json:"hostName"`
}

func (a *API) createRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	room, err := a.service.CreateRoom(r.Context(), actor(r), req.HostName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

type joinRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type joinResponse struct {
	Room   domain.Room   `json:"room"`
	Member domain.Member `json:"member"`
}

func (a *API) joinRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	room, member, err := a.service.JoinRoom(r.Context(), req.Code, actor(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Room: room, Member: member})
}

func (a *API) getRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.service.Room(r.Context(), ps.ByName("roomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) listMembers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	members, err := a.service.Members(r.Context(), ps.ByName("roomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) listMovies(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	movies, err := a.service.Movies(r.Context(), ps.ByName("roomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

type proposeMovieRequest struct {
	MovieID string `json:"movieId"`
	Title   string `json:"title"`
}

func (a *API) proposeMovie(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req proposeMovieRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	movie, err := a.service.ProposeMovie(r.Context(), ps.ByName("roomId"), actor(r), req.MovieID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, movie)
}

type voteRequest struct {
	Vote bool `json:"vote"`
}

func (a *API) voteMovie(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req voteRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if err := a.service.VoteMovie(r.Context(), ps.ByName("roomId"), ps.ByName("movieId"), actor(r), req.Vote); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) acceptMovie(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := a.service.AcceptMovie(r.Context(), ps.ByName("roomId"), ps.ByName("movieId"), actor(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startRequest struct {
	ScoringMode domain.ScoringMode `json:"scoringMode"`
}

func (a *API) startQuiz(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	room, err := a.service.StartQuiz(r.Context(), ps.ByName("roomId"), actor(r), req.ScoringMode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) listQuestions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	questions, err := a.service.Questions(r.Context(), ps.ByName("roomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) createQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var draft domain.QuestionDraft
	if err := decode(r, &draft); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	q, err := a.service.CreateQuestion(r.Context(), ps.ByName("roomId"), actor(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

type importRequest struct {
	Questions []domain.QuestionDraft `json:"questions"`
}

type importResponse struct {
	Created []domain.Question `json:"created"`
	Error   *errorBody        `json:"error,omitempty"`
}

// importQuestions reports partial success: questions written before a
// rejection are returned alongside the error.
func (a *API) importQuestions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req importRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	created, err := a.service.ImportQuestions(r.Context(), ps.ByName("roomId"), actor(r), req.Questions)
	if err != nil && len(created) == 0 {
		writeError(w, err)
		return
	}
	resp := importResponse{Created: created}
	status := http.StatusCreated
	if err != nil {
		body := toErrorBody(err)
		resp.Error = &body
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (a *API) deleteQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := a.service.DeleteQuestion(r.Context(), ps.ByName("roomId"), actor(r), ps.ByName("questionId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) publishQuestions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	published, err := a.service.PublishQuestions(r.Context(), ps.ByName("roomId"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, published)
}

func (a *API) finishQuiz(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.service.FinishQuiz(r.Context(), ps.ByName("roomId"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) resetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.service.ResetToVoting(r.Context(), ps.ByName("roomId"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) results(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	results, err := a.service.Results(r.Context(), ps.ByName("roomId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type answerRequest struct {
	OptionIndex *int `json:"optionIndex"`
	TimeLeft    int  `json:"timeLeft"`
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if req.OptionIndex == nil {
		writeBadRequest(w, "optionIndex is required")
		return
	}
	receipt, err := a.service.SubmitAnswer(r.Context(), ps.ByName("questionId"), actor(r), *req.OptionIndex, req.TimeLeft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}
