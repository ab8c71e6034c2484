package app

import (
	"context"
	"errors"
	"math"
	"time"

	"watchparty-quiz/internal/domain"
	"watchparty-quiz/internal/scoring"
)

// SubmitAnswer records a player's single answer to a published question and
// returns the points it earned. Resubmissions are rejected, never overwritten.
func (s *Service) SubmitAnswer(ctx context.Context, questionID, userID string, optionIndex, timeLeft int) (domain.AnswerReceipt, error) {
	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.AnswerReceipt{}, err
	}
	room, err := s.store.GetRoom(ctx, question.RoomID)
	if err != nil {
		return domain.AnswerReceipt{}, err
	}
	if room.Status != domain.StatusQuiz || !question.Published {
		return domain.AnswerReceipt{}, domain.Errorf(domain.KindQuizNotActive, "question is not open for answers (room is %s)", room.Status)
	}
	if room.IsHost(userID) {
		return domain.AnswerReceipt{}, domain.Errorf(domain.KindForbidden, "the host does not play")
	}
	if _, err := s.store.GetMember(ctx, room.ID, userID); err != nil {
		return domain.AnswerReceipt{}, err
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return domain.AnswerReceipt{}, domain.Errorf(domain.KindValidation, "option %d out of range [0,%d)", optionIndex, len(question.Options))
	}

	now := s.now()
	timeLeft = scoring.ClampTimeLeft(question.DurationSeconds, timeLeft)
	if s.opts.EnforceDeadline {
		remaining, open, err := s.serverTimeLeft(ctx, question, now)
		if err != nil {
			return domain.AnswerReceipt{}, s.logFailure("submit answer", err, "question_id", questionID)
		}
		if !open {
			return domain.AnswerReceipt{}, domain.Errorf(domain.KindQuizNotActive, "answer window closed")
		}
		if remaining < timeLeft {
			timeLeft = remaining
		}
	}

	// Advisory only; InsertAnswer's unique key is the real guard.
	if _, err := s.store.GetAnswer(ctx, questionID, userID); err == nil {
		return domain.AnswerReceipt{}, domain.Errorf(domain.KindAlreadyAnswered, "question already answered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.AnswerReceipt{}, s.logFailure("submit answer", err, "question_id", questionID)
	}

	mode := room.ScoringMode
	if !mode.Valid() {
		mode = s.opts.DefaultScoring
	}
	strategy, err := scoring.ForMode(mode)
	if err != nil {
		return domain.AnswerReceipt{}, err
	}
	correct := optionIndex == question.CorrectIndex
	answer := domain.Answer{
		QuestionID:  question.ID,
		RoomID:      room.ID,
		UserID:      userID,
		OptionIndex: optionIndex,
		Correct:     correct,
		TimeLeft:    timeLeft,
		Score:       strategy.Score(correct, question.DurationSeconds, timeLeft),
		AnsweredAt:  now,
	}
	if err := s.store.InsertAnswer(ctx, answer); err != nil {
		return domain.AnswerReceipt{}, s.logFailure("submit answer", err, "question_id", questionID)
	}

	s.dropResults(ctx, room.ID)
	s.emit(ctx, room.ID, domain.TopicQuizResults)
	return domain.AnswerReceipt{QuestionID: question.ID, Correct: correct, Score: answer.Score}, nil
}

// serverTimeLeft computes the seconds left for q from its publish time, with
// questions played back to back in question order.
func (s *Service) serverTimeLeft(ctx context.Context, q domain.Question, now time.Time) (int, bool, error) {
	if q.PublishedAt == nil {
		return 0, false, nil
	}
	questions, err := s.store.ListQuestions(ctx, q.RoomID)
	if err != nil {
		return 0, false, err
	}
	offset := 0
	for _, other := range questions {
		if other.Published && other.QuestionOrder < q.QuestionOrder {
			offset += other.DurationSeconds
		}
	}
	opens := q.PublishedAt.Add(time.Duration(offset) * time.Second)
	closes := opens.Add(time.Duration(q.DurationSeconds) * time.Second)
	if now.After(closes.Add(s.opts.DeadlineGrace)) {
		return 0, false, nil
	}
	left := int(math.Floor(closes.Sub(now).Seconds()))
	return scoring.ClampTimeLeft(q.DurationSeconds, left), true, nil
}
