package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"watchparty-quiz/internal/domain"
)

// ValidateDraft normalizes a draft and checks it against question limits.
func ValidateDraft(d domain.QuestionDraft) (domain.QuestionDraft, error) {
	d.Text = strings.TrimSpace(d.Text)
	if d.Text == "" {
		return d, domain.Errorf(domain.KindValidation, "question text is required")
	}
	if len(d.Options) < domain.MinOptions {
		e := domain.Errorf(domain.KindLimitExceeded, "at least %d options are required", domain.MinOptions)
		e.Limit, e.Count = domain.MinOptions, len(d.Options)
		return d, e
	}
	if len(d.Options) > domain.MaxOptions {
		return d, domain.LimitExceeded("options", domain.MaxOptions, len(d.Options))
	}
	options := make([]string, len(d.Options))
	for i, opt := range d.Options {
		options[i] = strings.TrimSpace(opt)
		if options[i] == "" {
			return d, domain.Errorf(domain.KindValidation, "option %d is empty", i)
		}
	}
	d.Options = options
	if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Options) {
		return d, domain.Errorf(domain.KindValidation, "correct index %d out of range [0,%d)", d.CorrectIndex, len(d.Options))
	}
	if d.DurationSeconds == 0 {
		d.DurationSeconds = domain.DefaultDurationSeconds
	}
	if d.DurationSeconds < domain.MinDurationSeconds || d.DurationSeconds > domain.MaxDurationSeconds {
		return d, domain.Errorf(domain.KindValidation, "duration %ds outside [%d,%d]", d.DurationSeconds, domain.MinDurationSeconds, domain.MaxDurationSeconds)
	}
	return d, nil
}

// CreateQuestion adds a draft question to a room in quiz status.
func (s *Service) CreateQuestion(ctx context.Context, roomID, actorID string, draft domain.QuestionDraft) (domain.Question, error) {
	room, err := s.authoringRoom(ctx, roomID, actorID)
	if err != nil {
		return domain.Question{}, err
	}
	draft, err = ValidateDraft(draft)
	if err != nil {
		return domain.Question{}, err
	}
	q, err := s.insertDraft(ctx, room.ID, draft)
	if err != nil {
		return domain.Question{}, s.logFailure("create question", err, "room_id", roomID)
	}
	s.emit(ctx, room.ID, domain.TopicQuizQuestions)
	return q, nil
}

// ImportQuestions inserts externally generated drafts through the same path
// as manual authoring. Every draft is validated before any insert; inserts
// stop at the first rejection and the questions written so far are returned.
func (s *Service) ImportQuestions(ctx context.Context, roomID, actorID string, drafts []domain.QuestionDraft) ([]domain.Question, error) {
	room, err := s.authoringRoom(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	valid := make([]domain.QuestionDraft, len(drafts))
	for i, d := range drafts {
		if valid[i], err = ValidateDraft(d); err != nil {
			return nil, err
		}
	}

	created := make([]domain.Question, 0, len(valid))
	for _, d := range valid {
		q, err := s.insertDraft(ctx, room.ID, d)
		if err != nil {
			if len(created) > 0 {
				s.emit(ctx, room.ID, domain.TopicQuizQuestions)
			}
			return created, s.logFailure("import questions", err, "room_id", roomID)
		}
		created = append(created, q)
	}
	if len(created) > 0 {
		s.emit(ctx, room.ID, domain.TopicQuizQuestions)
	}
	return created, nil
}

// DeleteQuestion removes a draft question.
func (s *Service) DeleteQuestion(ctx context.Context, roomID, actorID, questionID string) error {
	room, err := s.hostRoom(ctx, roomID, actorID, "delete questions")
	if err != nil {
		return err
	}
	if err := s.store.DeleteDraftQuestion(ctx, room.ID, questionID); err != nil {
		return s.logFailure("delete question", err, "room_id", roomID)
	}
	s.emit(ctx, room.ID, domain.TopicQuizQuestions)
	return nil
}

// Questions lists a room's questions, published ones first in play order.
func (s *Service) Questions(ctx context.Context, roomID string) ([]domain.Question, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListQuestions(ctx, roomID)
}

func (s *Service) authoringRoom(ctx context.Context, roomID, actorID string) (domain.Room, error) {
	room, err := s.hostRoom(ctx, roomID, actorID, "author questions")
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.StatusQuiz {
		return domain.Room{}, domain.InvalidTransition("authoring questions", room.Status)
	}
	return room, nil
}

func (s *Service) insertDraft(ctx context.Context, roomID string, d domain.QuestionDraft) (domain.Question, error) {
	return s.store.CreateQuestion(ctx, domain.Question{
		ID:              uuid.NewString(),
		RoomID:          roomID,
		Text:            d.Text,
		Options:         d.Options,
		CorrectIndex:    d.CorrectIndex,
		DurationSeconds: d.DurationSeconds,
		CreatedAt:       s.now(),
	}, domain.MaxQuestionsPerRoom)
}
