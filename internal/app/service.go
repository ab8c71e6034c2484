package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"watchparty-quiz/internal/domain"
)

// Options tunes the quiz service. Zero values pick the defaults.
type Options struct {
	// DefaultScoring is recorded on rooms that start a quiz without an explicit mode.
	DefaultScoring domain.ScoringMode
	// EnforceDeadline closes each question's answer window server-side.
	EnforceDeadline bool
	// DeadlineGrace extends every server-side window to absorb network latency.
	DeadlineGrace time.Duration
	Logger        *slog.Logger
	// Clock is overridable for deterministic tests.
	Clock func() time.Time
}

// Service contains the room, quiz session, answer and results use cases.
type Service struct {
	store    Store
	notifier Notifier
	results  ResultsCache
	opts     Options
	log      *slog.Logger
	now      func() time.Time
	sf       singleflight.Group

	genMu sync.Mutex
	gens  map[string]uint64
}

func NewService(store Store, notifier Notifier, cache ResultsCache, opts Options) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cache == nil {
		cache = noopCache{}
	}
	if !opts.DefaultScoring.Valid() {
		opts.DefaultScoring = domain.ScoringTimeWeighted
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		store:    store,
		notifier: notifier,
		results:  cache,
		opts:     opts,
		log:      opts.Logger,
		now:      func() time.Time { return opts.Clock().UTC() },
		gens:     make(map[string]uint64),
	}
}

// emit signals each topic once after a committed mutation. Delivery failures
// are logged, never returned: the mutation already happened.
func (s *Service) emit(ctx context.Context, roomID string, topics ...domain.Topic) {
	for _, topic := range topics {
		if err := s.notifier.Invalidate(ctx, roomID, topic); err != nil {
			s.log.Warn("invalidation failed", "room_id", roomID, "topic", topic, "err", err)
		}
	}
}

func (s *Service) dropResults(ctx context.Context, roomID string) {
	s.genMu.Lock()
	s.gens[roomID]++
	s.genMu.Unlock()
	if err := s.results.Invalidate(ctx, roomID); err != nil {
		s.log.Warn("results cache invalidation failed", "room_id", roomID, "err", err)
	}
}

// hostRoom loads the room and checks that actorID hosts it.
func (s *Service) hostRoom(ctx context.Context, roomID, actorID, op string) (domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.IsHost(actorID) {
		return domain.Room{}, domain.Errorf(domain.KindForbidden, "only the host can %s", op)
	}
	return room, nil
}

// logFailure records storage failures; expected rejections are returned quietly.
func (s *Service) logFailure(op string, err error, attrs ...any) error {
	if errors.Is(err, domain.ErrStorage) {
		s.log.Error(op+" failed", append(attrs, "err", err)...)
	}
	return err
}
