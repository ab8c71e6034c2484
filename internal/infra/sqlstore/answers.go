package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"watchparty-quiz/internal/domain"
)

const answerColumns = `question_id, room_id, user_id, option_index, correct, time_left, score, answered_at`

func scanAnswer(row scanner) (domain.Answer, error) {
	var (
		a          domain.Answer
		answeredAt int64
	)
	if err := row.Scan(&a.QuestionID, &a.RoomID, &a.UserID, &a.OptionIndex, &a.Correct, &a.TimeLeft, &a.Score, &answeredAt); err != nil {
		return domain.Answer{}, err
	}
	a.AnsweredAt = fromNanos(answeredAt)
	return a, nil
}

// InsertAnswer relies on the (question_id, user_id) primary key: a second
// insert for the pair is ignored and reported as AlreadyAnswered, keeping
// the first row untouched.
func (s *Store) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	return s.inTx(ctx, "insert answer", func(ctx context.Context, tx bun.Tx) error {
		var (
			roomID    string
			published bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT room_id, published FROM questions WHERE id = ?`, answer.QuestionID,
		).Scan(&roomID, &published)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("question", answer.QuestionID)
		}
		if err != nil {
			return err
		}
		// The room lock orders this insert against FinishQuiz and ResetRoom.
		room, err := s.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO answers (`+answerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (question_id, user_id) DO NOTHING`,
			answer.QuestionID, roomID, answer.UserID, answer.OptionIndex, answer.Correct,
			answer.TimeLeft, answer.Score, toNanos(answer.AnsweredAt),
		)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return domain.Errorf(domain.KindAlreadyAnswered, "question already answered")
		}
		if !published || room.Status != domain.StatusQuiz {
			// Roll the insert back; the caller sees the closed window.
			return domain.Errorf(domain.KindQuizNotActive, "question is not open for answers")
		}
		return nil
	})
}

func (s *Store) GetAnswer(ctx context.Context, questionID, userID string) (domain.Answer, error) {
	a, err := scanAnswer(s.db.QueryRowContext(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE question_id = ? AND user_id = ?`, questionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Answer{}, domain.NotFound("answer", questionID+"/"+userID)
	}
	if err != nil {
		return domain.Answer{}, domain.Storage("get answer", err)
	}
	return a, nil
}

func (s *Store) ListAnswers(ctx context.Context, roomID string) ([]domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE room_id = ? ORDER BY answered_at, question_id, user_id`, roomID)
	if err != nil {
		return nil, domain.Storage("list answers", err)
	}
	defer rows.Close()

	answers := make([]domain.Answer, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, domain.Storage("list answers", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list answers", err)
	}
	return answers, nil
}
