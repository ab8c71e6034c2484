package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"watchparty-quiz/internal/domain"
)

const questionColumns = `id, room_id, prompt, options, correct_index, duration_seconds, published, question_order, published_at, created_at, seq`

// Published questions come first in play order, then drafts by creation.
const questionOrder = ` ORDER BY published DESC, question_order, created_at, seq`

func scanQuestion(row scanner) (domain.Question, error) {
	var (
		q           domain.Question
		options     string
		publishedAt sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&q.ID, &q.RoomID, &q.Text, &options, &q.CorrectIndex, &q.DurationSeconds,
		&q.Published, &q.QuestionOrder, &publishedAt, &createdAt, &q.Seq); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return domain.Question{}, err
	}
	if publishedAt.Valid {
		at := fromNanos(publishedAt.Int64)
		q.PublishedAt = &at
	}
	q.CreatedAt = fromNanos(createdAt)
	return q, nil
}

func queryQuestions(ctx context.Context, db bun.IConn, query string, args ...any) ([]domain.Question, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question, limit int) (domain.Question, error) {
	options, err := json.Marshal(question.Options)
	if err != nil {
		return domain.Question{}, domain.Storage("create question", err)
	}
	question.Published = false
	question.PublishedAt = nil
	question.QuestionOrder = 0

	err = s.inTx(ctx, "create question", func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockRoom(ctx, tx, question.RoomID); err != nil {
			return err
		}
		var count, published int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(CASE WHEN published THEN 1 ELSE 0 END), 0) FROM questions WHERE room_id = ?`,
			question.RoomID,
		).Scan(&count, &published); err != nil {
			return err
		}
		if published > 0 {
			return domain.Errorf(domain.KindAlreadyPublished, "questions were already published")
		}
		if count >= limit {
			return domain.LimitExceeded("questions", limit, count)
		}
		seq, err := nextSeq(ctx, tx, "questions", question.RoomID)
		if err != nil {
			return err
		}
		question.Seq = seq
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, FALSE, 0, NULL, ?, ?)`,
			question.ID, question.RoomID, question.Text, string(options), question.CorrectIndex,
			question.DurationSeconds, toNanos(question.CreatedAt), seq,
		)
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

func (s *Store) DeleteDraftQuestion(ctx context.Context, roomID, questionID string) error {
	return s.inTx(ctx, "delete question", func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockRoom(ctx, tx, roomID); err != nil {
			return err
		}
		var published bool
		err := tx.QueryRowContext(ctx,
			`SELECT published FROM questions WHERE id = ? AND room_id = ?`, questionID, roomID,
		).Scan(&published)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("question", questionID)
		}
		if err != nil {
			return err
		}
		if published {
			return domain.Errorf(domain.KindAlreadyPublished, "published questions cannot be deleted")
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, questionID)
		return err
	})
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, questionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	if err != nil {
		return domain.Question{}, domain.Storage("get question", err)
	}
	return q, nil
}

func (s *Store) ListQuestions(ctx context.Context, roomID string) ([]domain.Question, error) {
	qs, err := queryQuestions(ctx, s.db,
		`SELECT `+questionColumns+` FROM questions WHERE room_id = ?`+questionOrder, roomID)
	if err != nil {
		return nil, domain.Storage("list questions", err)
	}
	return qs, nil
}

// PublishQuestions numbers every draft in creation order and stamps them with
// one publish instant inside a single transaction.
func (s *Store) PublishQuestions(ctx context.Context, roomID string, at time.Time) ([]domain.Question, error) {
	var published []domain.Question
	err := s.inTx(ctx, "publish questions", func(ctx context.Context, tx bun.Tx) error {
		room, err := s.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != domain.StatusQuiz {
			return domain.InvalidTransition("publishing questions", room.Status)
		}
		qs, err := queryQuestions(ctx, tx,
			`SELECT `+questionColumns+` FROM questions WHERE room_id = ?`+questionOrder, roomID)
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			return domain.Errorf(domain.KindNotReady, "no draft questions to publish")
		}
		if qs[0].Published {
			return domain.Errorf(domain.KindAlreadyPublished, "questions were already published")
		}

		stamp := toNanos(at)
		for i := range qs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE questions SET published = TRUE, question_order = ?, published_at = ? WHERE id = ?`,
				i, stamp, qs[i].ID,
			); err != nil {
				return err
			}
			publishedAt := fromNanos(stamp)
			qs[i].Published = true
			qs[i].QuestionOrder = i
			qs[i].PublishedAt = &publishedAt
		}
		published = qs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}
