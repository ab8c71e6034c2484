package http

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"watchparty-quiz/internal/app"
)

// UserHeader carries the acting user's id on every REST call.
const UserHeader = "X-User-ID"

// API serves the room, quiz and results use cases over JSON.
type API struct {
	service   *app.Service
	publicURL string
	log       *slog.Logger
}

// NewRouter wires the REST API, the join QR endpoint and the websocket onto
// one httprouter. publicURL is the base of join links embedded in QR codes;
// when empty the request host is used.
func NewRouter(service *app.Service, subscriber app.Subscriber, publicURL string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	api := &API{service: service, publicURL: publicURL, log: logger}
	ws := NewWSHandler(service, subscriber, logger)

	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		_, _ = w.Write([]byte("ok"))
	})

	router.POST("/rooms", api.createRoom)
	router.POST("/join", api.joinRoom)
	router.GET("/rooms/:roomId", api.getRoom)
	router.GET("/rooms/:roomId/members", api.listMembers)

	router.GET("/rooms/:roomId/movies", api.listMovies)
	router.POST("/rooms/:roomId/movies", api.proposeMovie)
	router.POST("/rooms/:roomId/movies/:movieId/votes", api.voteMovie)
	router.POST("/rooms/:roomId/movies/:movieId/accept", api.acceptMovie)

	router.POST("/rooms/:roomId/start", api.startQuiz)
	router.GET("/rooms/:roomId/questions", api.listQuestions)
	router.POST("/rooms/:roomId/questions", api.createQuestion)
	router.POST("/rooms/:roomId/questions/import", api.importQuestions)
	router.DELETE("/rooms/:roomId/questions/:questionId", api.deleteQuestion)
	router.POST("/rooms/:roomId/publish", api.publishQuestions)
	router.POST("/rooms/:roomId/finish", api.finishQuiz)
	router.POST("/rooms/:roomId/reset", api.resetRoom)
	router.GET("/rooms/:roomId/results", api.results)

	router.POST("/questions/:questionId/answers", api.submitAnswer)

	router.GET("/qr/:code", api.joinQR)
	router.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws.ServeWS(w, r)
	})
	return router
}
