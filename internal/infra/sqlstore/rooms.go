package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"watchparty-quiz/internal/domain"
)

func (s *Store) CreateRoom(ctx context.Context, room domain.Room, host domain.Member) error {
	return s.inTx(ctx, "create room", func(ctx context.Context, tx bun.Tx) error {
		var taken int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE code = ? OR id = ?`, room.Code, room.ID).Scan(&taken); err != nil {
			return err
		}
		if taken > 0 {
			return domain.Errorf(domain.KindConflict, "room code %s taken", room.Code)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			room.ID, room.Code, room.HostID, string(room.Status), string(room.ScoringMode), toNanos(room.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return domain.Errorf(domain.KindConflict, "room code %s taken", room.Code)
			}
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id, display_name, joined_at, seq) VALUES (?, ?, ?, ?, 1)`,
			room.ID, host.UserID, host.DisplayName, toNanos(host.JoinedAt),
		)
		return err
	})
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.NotFound("room", roomID)
	}
	if err != nil {
		return domain.Room{}, domain.Storage("get room", err)
	}
	return room, nil
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.NotFound("room code", code)
	}
	if err != nil {
		return domain.Room{}, domain.Storage("get room by code", err)
	}
	return room, nil
}

// TransitionRoom is a compare-and-set on the status column.
func (s *Store) TransitionRoom(ctx context.Context, roomID string, from, to domain.RoomStatus, mode domain.ScoringMode) error {
	return s.inTx(ctx, "transition room", func(ctx context.Context, tx bun.Tx) error {
		room, err := s.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != from || !from.CanTransition(to) {
			return domain.InvalidTransition("moving to "+string(to), room.Status)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE rooms SET status = ?, scoring_mode = ? WHERE id = ? AND status = ?`,
			string(to), string(mode), roomID, string(from),
		)
		return err
	})
}

func (s *Store) ResetRoom(ctx context.Context, roomID string) error {
	return s.inTx(ctx, "reset room", func(ctx context.Context, tx bun.Tx) error {
		room, err := s.lockRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.Status != domain.StatusFinished {
			return domain.InvalidTransition("resetting to voting", room.Status)
		}
		for _, stmt := range []string{
			`DELETE FROM answers WHERE room_id = ?`,
			`DELETE FROM questions WHERE room_id = ?`,
			`DELETE FROM movie_votes WHERE room_movie_id IN (SELECT id FROM room_movies WHERE room_id = ?)`,
			`UPDATE room_movies SET accepted = FALSE WHERE room_id = ?`,
			`UPDATE rooms SET status = 'voting', scoring_mode = '' WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, roomID); err != nil {
				return err
			}
		}
		return nil
	})
}

const memberColumns = `room_id, user_id, display_name, joined_at, seq`

func scanMember(row scanner) (domain.Member, error) {
	var (
		m        domain.Member
		joinedAt int64
	)
	if err := row.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &joinedAt, &m.Seq); err != nil {
		return domain.Member{}, err
	}
	m.JoinedAt = fromNanos(joinedAt)
	return m, nil
}

func (s *Store) AddMember(ctx context.Context, member domain.Member) (domain.Member, bool, error) {
	var (
		out     domain.Member
		created bool
	)
	err := s.inTx(ctx, "add member", func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockRoom(ctx, tx, member.RoomID); err != nil {
			return err
		}
		existing, err := scanMember(tx.QueryRowContext(ctx,
			`SELECT `+memberColumns+` FROM room_members WHERE room_id = ? AND user_id = ?`,
			member.RoomID, member.UserID,
		))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		seq, err := nextSeq(ctx, tx, "room_members", member.RoomID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?)`,
			member.RoomID, member.UserID, member.DisplayName, toNanos(member.JoinedAt), seq,
		); err != nil {
			return err
		}
		out, created = member, true
		out.Seq = seq
		return nil
	})
	if err != nil {
		return domain.Member{}, false, err
	}
	return out, created, nil
}

func (s *Store) GetMember(ctx context.Context, roomID, userID string) (domain.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, domain.NotFound("member", userID)
	}
	if err != nil {
		return domain.Member{}, domain.Storage("get member", err)
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM room_members WHERE room_id = ? ORDER BY joined_at, seq`, roomID)
	if err != nil {
		return nil, domain.Storage("list members", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, domain.Storage("list members", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list members", err)
	}
	return members, nil
}
