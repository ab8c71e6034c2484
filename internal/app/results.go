package app

import (
	"context"
	"strconv"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/scoring"
)

// Results replays the room's answer log into a ranked leaderboard.
// Concurrent calls for one room share a single replay.
func (s *Service) Results(ctx context.Context, roomID string) (domain.RoomResults, error) {
	if cached, ok, err := s.results.Get(ctx, roomID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.log.Warn("results cache read failed", "room_id", roomID, "err", err)
	}

	// A write bumps the generation, so callers arriving after it never share
	// a replay that started before it, and that replay is not cached.
	gen := s.generation(roomID)
	v, err, _ := s.sf.Do(roomID+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// Shared by every caller in the flight, so one caller cancelling must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		results, err := s.computeResults(ctx, roomID)
		if err != nil {
			return domain.RoomResults{}, err
		}
		if s.generation(roomID) == gen {
			if err := s.results.Set(ctx, results); err != nil {
				s.log.Warn("results cache write failed", "room_id", roomID, "err", err)
			}
		}
		return results, nil
	})
	if err != nil {
		return domain.RoomResults{}, s.logFailure("results", err, "room_id", roomID)
	}
	return v.(domain.RoomResults), nil
}

func (s *Service) computeResults(ctx context.Context, roomID string) (domain.RoomResults, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.RoomResults{}, err
	}
	all, err := s.store.ListQuestions(ctx, room.ID)
	if err != nil {
		return domain.RoomResults{}, err
	}
	questions := make([]domain.Question, 0, len(all))
	for _, q := range all {
		if q.Published {
			questions = append(questions, q)
		}
	}
	answers, err := s.store.ListAnswers(ctx, room.ID)
	if err != nil {
		return domain.RoomResults{}, err
	}
	members, err := s.store.ListMembers(ctx, room.ID)
	if err != nil {
		return domain.RoomResults{}, err
	}

	mode := room.ScoringMode
	if !mode.Valid() {
		mode = s.opts.DefaultScoring
	}
	return domain.RoomResults{
		RoomID:         room.ID,
		Status:         room.Status,
		ScoringMode:    mode,
		TotalQuestions: len(questions),
		Scores:         scoring.Aggregate(mode, questions, answers, members, room.HostID),
		ComputedAt:     s.now(),
	}, nil
}

func (s *Service) generation(roomID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[roomID]
}
