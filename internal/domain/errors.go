package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an expected rejection or a storage failure.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindInvalidTransition Kind = "InvalidTransition"
	KindNotReady          Kind = "NotReady"
	KindNoPlayers         Kind = "NoPlayers"
	KindAlreadyPublished  Kind = "AlreadyPublished"
	KindAlreadyAnswered   Kind = "AlreadyAnswered"
	KindLimitExceeded     Kind = "LimitExceeded"
	KindValidation        Kind = "ValidationError"
	KindQuizNotActive     Kind = "QuizNotActive"
	KindForbidden         Kind = "Forbidden"
	KindConflict          Kind = "Conflict"
	KindStorage           Kind = "StorageError"
)

var (
	// ErrNotFound is returned when a referenced room, question, member or movie does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when the room is not in the required source state.
	ErrInvalidTransition = errors.New("invalid room transition")
	// ErrNotReady is returned when a transition's preconditions are not met yet.
	ErrNotReady = errors.New("room not ready")
	// ErrNoPlayers is returned when publishing to a room with only the host.
	ErrNoPlayers = errors.New("no players besides the host")
	// ErrAlreadyPublished guards the one-shot publish and post-publish edits.
	ErrAlreadyPublished = errors.New("questions already published")
	// ErrAlreadyAnswered guards exactly-once answers.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrLimitExceeded is returned when a count limit would be crossed.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrQuizNotActive is returned when answering outside the answer window.
	ErrQuizNotActive = errors.New("quiz not active")
	// ErrForbidden is returned when a non-host calls a host-only operation, or the host tries to play.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrStorage wraps unexpected persistence failures.
	ErrStorage = errors.New("storage failure")
)

var sentinels = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindInvalidTransition: ErrInvalidTransition,
	KindNotReady:          ErrNotReady,
	KindNoPlayers:         ErrNoPlayers,
	KindAlreadyPublished:  ErrAlreadyPublished,
	KindAlreadyAnswered:   ErrAlreadyAnswered,
	KindLimitExceeded:     ErrLimitExceeded,
	KindValidation:        ErrValidation,
	KindQuizNotActive:     ErrQuizNotActive,
	KindForbidden:         ErrForbidden,
	KindConflict:          ErrConflict,
	KindStorage:           ErrStorage,
}

// Error is a structured rejection. It matches its kind's sentinel with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	// Limit and Count are set for LimitExceeded.
	Limit int
	Count int
	// Status is the room status observed when a transition was rejected.
	Status RoomStatus
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Errorf builds a structured error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return Errorf(KindNotFound, "%s %q not found", entity, id)
}

// InvalidTransition reports a status precondition failure.
func InvalidTransition(op string, current RoomStatus) *Error {
	e := Errorf(KindInvalidTransition, "%s not allowed while room is %s", op, current)
	e.Status = current
	return e
}

// LimitExceeded reports a crossed limit with the observed count.
func LimitExceeded(what string, limit, count int) *Error {
	e := Errorf(KindLimitExceeded, "maximum %d %s reached", limit, what)
	e.Limit = limit
	e.Count = count
	return e
}

// Storage wraps an unexpected persistence error.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf extracts the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
