package app

import (
	"context"
	"time"

	"watchparty-quiz/internal/domain"
)

// Store abstracts durable storage for rooms, members, movies, questions and
// answers (in-memory, SQLite, Postgres). Multi-row operations are atomic.
type Store interface {
	// CreateRoom inserts the room and its host membership. A taken code
	// yields domain.ErrConflict.
	CreateRoom(ctx context.Context, room domain.Room, host domain.Member) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	// TransitionRoom moves the room from one status to another only if it is
	// still in from. A mismatch yields domain.ErrInvalidTransition.
	TransitionRoom(ctx context.Context, roomID string, from, to domain.RoomStatus, mode domain.ScoringMode) error
	// ResetRoom moves a finished room back to voting, deleting its questions
	// and answers and clearing movie acceptance and votes.
	ResetRoom(ctx context.Context, roomID string) error

	// AddMember inserts the member or returns the existing row. created
	// reports whether a new row was written.
	AddMember(ctx context.Context, member domain.Member) (domain.Member, bool, error)
	GetMember(ctx context.Context, roomID, userID string) (domain.Member, error)
	// ListMembers returns members in join order.
	ListMembers(ctx context.Context, roomID string) ([]domain.Member, error)

	ProposeMovie(ctx context.Context, movie domain.RoomMovie) (domain.RoomMovie, error)
	UpsertMovieVote(ctx context.Context, roomID string, vote domain.MovieVote) error
	// AcceptMovie marks one proposal accepted and every other one in the room not accepted.
	AcceptMovie(ctx context.Context, roomID, roomMovieID string) error
	ListMovies(ctx context.Context, roomID string) ([]domain.RoomMovie, error)
	HasAcceptedMovie(ctx context.Context, roomID string) (bool, error)

	// CreateQuestion inserts a draft, enforcing the per-room limit and
	// rejecting rooms whose questions are already published.
	CreateQuestion(ctx context.Context, question domain.Question, limit int) (domain.Question, error)
	// DeleteDraftQuestion removes a question that has not been published.
	DeleteDraftQuestion(ctx context.Context, roomID, questionID string) error
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	// ListQuestions returns published questions by order, then drafts by creation.
	ListQuestions(ctx context.Context, roomID string) ([]domain.Question, error)
	// PublishQuestions publishes every draft of a room in creation order with a
	// shared timestamp, only while the room is in quiz status.
	PublishQuestions(ctx context.Context, roomID string, at time.Time) ([]domain.Question, error)

	// InsertAnswer appends an answer if the question is published, its room is
	// in quiz status and the (question, user) pair has no answer yet.
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	GetAnswer(ctx context.Context, questionID, userID string) (domain.Answer, error)
	ListAnswers(ctx context.Context, roomID string) ([]domain.Answer, error)
}

// Notifier signals that clients of a room should reload a topic.
type Notifier interface {
	Invalidate(ctx context.Context, roomID string, topic domain.Topic) error
}

// Subscriber streams invalidations of a room until cancel is called.
type Subscriber interface {
	Subscribe(roomID string) (<-chan domain.Invalidation, func())
}

// ResultsCache holds short-lived leaderboard snapshots.
type ResultsCache interface {
	Get(ctx context.Context, roomID string) (domain.RoomResults, bool, error)
	Set(ctx context.Context, results domain.RoomResults) error
	Invalidate(ctx context.Context, roomID string) error
}

type noopNotifier struct{}

func (noopNotifier) Invalidate(context.Context, string, domain.Topic) error { return nil }

type noopCache struct{}

func (noopCache) Get(context.Context, string) (domain.RoomResults, bool, error) {
	return domain.RoomResults{}, false, nil
}
func (noopCache) Set(context.Context, domain.RoomResults) error { return nil }
func (noopCache) Invalidate(context.Context, string) error      { return nil }
