package app

import (
	"context"

	"watchparty-quiz/internal/domain"
)

// StartQuiz moves a voting room into quiz status once a movie is accepted,
// recording the scoring mode the room keeps until it is reset.
func (s *Service) StartQuiz(ctx context.Context, roomID, actorID string, mode domain.ScoringMode) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID, "start the quiz")
	if err != nil {
		return domain.Room{}, err
	}
	if mode == "" {
		mode = s.opts.DefaultScoring
	}
	if !mode.Valid() {
		return domain.Room{}, domain.Errorf(domain.KindValidation, "unknown scoring mode %q", mode)
	}
	if !room.Status.CanTransition(domain.StatusQuiz) {
		return domain.Room{}, domain.InvalidTransition("starting the quiz", room.Status)
	}
	accepted, err := s.store.HasAcceptedMovie(ctx, room.ID)
	if err != nil {
		return domain.Room{}, s.logFailure("start quiz", err, "room_id", roomID)
	}
	if !accepted {
		return domain.Room{}, domain.Errorf(domain.KindNotReady, "no accepted movie")
	}

	if err := s.store.TransitionRoom(ctx, room.ID, domain.StatusVoting, domain.StatusQuiz, mode); err != nil {
		return domain.Room{}, s.logFailure("start quiz", err, "room_id", roomID)
	}
	room.Status = domain.StatusQuiz
	room.ScoringMode = mode
	s.dropResults(ctx, room.ID)
	s.log.Info("quiz started", "room_id", room.ID, "scoring_mode", mode)
	s.emit(ctx, room.ID, domain.TopicRoomStatus)
	return room, nil
}

// PublishQuestions makes every draft question answerable, in creation order,
// as one batch.
func (s *Service) PublishQuestions(ctx context.Context, roomID, actorID string) ([]domain.Question, error) {
	room, err := s.hostRoom(ctx, roomID, actorID, "publish questions")
	if err != nil {
		return nil, err
	}
	if room.Status != domain.StatusQuiz {
		return nil, domain.InvalidTransition("publishing questions", room.Status)
	}

	questions, err := s.store.ListQuestions(ctx, room.ID)
	if err != nil {
		return nil, s.logFailure("publish questions", err, "room_id", roomID)
	}
	drafts := 0
	for _, q := range questions {
		if q.Published {
			return nil, domain.Errorf(domain.KindAlreadyPublished, "questions were already published")
		}
		drafts++
	}
	if drafts == 0 {
		return nil, domain.Errorf(domain.KindNotReady, "no draft questions to publish")
	}

	members, err := s.store.ListMembers(ctx, room.ID)
	if err != nil {
		return nil, s.logFailure("publish questions", err, "room_id", roomID)
	}
	if countPlayers(members, room.HostID) == 0 {
		return nil, domain.Errorf(domain.KindNoPlayers, "the room has no players besides the host")
	}

	published, err := s.store.PublishQuestions(ctx, room.ID, s.now())
	if err != nil {
		return nil, s.logFailure("publish questions", err, "room_id", roomID)
	}
	s.dropResults(ctx, room.ID)
	s.log.Info("questions published", "room_id", room.ID, "count", len(published))
	s.emit(ctx, room.ID, domain.TopicQuizQuestions)
	return published, nil
}

// FinishQuiz closes the quiz. Answers are rejected from then on.
func (s *Service) FinishQuiz(ctx context.Context, roomID, actorID string) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID, "finish the quiz")
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Status.CanTransition(domain.StatusFinished) {
		return domain.Room{}, domain.InvalidTransition("finishing the quiz", room.Status)
	}
	questions, err := s.store.ListQuestions(ctx, room.ID)
	if err != nil {
		return domain.Room{}, s.logFailure("finish quiz", err, "room_id", roomID)
	}
	if len(questions) == 0 || !questions[0].Published {
		return domain.Room{}, domain.Errorf(domain.KindNotReady, "questions are not published")
	}

	if err := s.store.TransitionRoom(ctx, room.ID, domain.StatusQuiz, domain.StatusFinished, room.ScoringMode); err != nil {
		return domain.Room{}, s.logFailure("finish quiz", err, "room_id", roomID)
	}
	room.Status = domain.StatusFinished
	s.dropResults(ctx, room.ID)
	s.log.Info("quiz finished", "room_id", room.ID)
	s.emit(ctx, room.ID, domain.TopicRoomStatus, domain.TopicQuizResults)
	return room, nil
}

// ResetToVoting sends a finished room back to voting. Questions, answers,
// movie acceptance and votes are destroyed; the code and members stay.
func (s *Service) ResetToVoting(ctx context.Context, roomID, actorID string) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID, "reset the room")
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Status.CanTransition(domain.StatusVoting) {
		return domain.Room{}, domain.InvalidTransition("resetting to voting", room.Status)
	}
	if err := s.store.ResetRoom(ctx, room.ID); err != nil {
		return domain.Room{}, s.logFailure("reset room", err, "room_id", roomID)
	}
	room.Status = domain.StatusVoting
	room.ScoringMode = ""
	s.dropResults(ctx, room.ID)
	s.log.Info("room reset to voting", "room_id", room.ID)
	s.emit(ctx, room.ID, domain.TopicRoomStatus, domain.TopicQuizQuestions, domain.TopicQuizResults, domain.TopicRoomMovies)
	return room, nil
}

func countPlayers(members []domain.Member, hostID string) int {
	n := 0
	for _, m := range members {
		if m.UserID != hostID {
			n++
		}
	}
	return n
}
