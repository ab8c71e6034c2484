package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"watchparty-quiz/internal/domain"
)

type errorBody struct {
	Kind    domain.Kind       `json:"kind"`
	Message string            `json:"message"`
	Limit   int               `json:"limit,omitempty"`
	Count   int               `json:"count,omitempty"`
	Status  domain.RoomStatus `json:"status,omitempty"`
}

// statusFor maps a rejection kind onto an HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidTransition, domain.KindNotReady, domain.KindNoPlayers,
		domain.KindAlreadyPublished, domain.KindAlreadyAnswered, domain.KindQuizNotActive, domain.KindConflict:
		return http.StatusConflict
	case domain.KindLimitExceeded, domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func toErrorBody(err error) errorBody {
	var de *domain.Error
	if errors.As(err, &de) {
		body := errorBody{Kind: de.Kind, Message: de.Message, Limit: de.Limit, Count: de.Count, Status: de.Status}
		if de.Kind == domain.KindStorage {
			// Driver messages stay in the logs.
			body.Message = "internal storage error"
		}
		return body
	}
	return errorBody{Kind: domain.KindStorage, Message: "internal error"}
}

func writeError(w http.ResponseWriter, err error) {
	body := toErrorBody(err)
	writeJSON(w, statusFor(body.Kind), map[string]errorBody{"error": body})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Kind: domain.KindValidation, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
