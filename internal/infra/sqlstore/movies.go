package sqlstore

import (
	"context"

	"github.com/uptrace/bun"

	"watchparty-quiz/internal/domain"
)

func (s *Store) ProposeMovie(ctx context.Context, movie domain.RoomMovie) (domain.RoomMovie, error) {
	movie.Accepted = false
	err := s.inTx(ctx, "propose movie", func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockRoom(ctx, tx, movie.RoomID); err != nil {
			return err
		}
		seq, err := nextSeq(ctx, tx, "room_movies", movie.RoomID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO room_movies (id, room_id, movie_id, title, proposed_by, accepted, created_at, seq)
			 VALUES (?, ?, ?, ?, ?, FALSE, ?, ?)`,
			movie.ID, movie.RoomID, movie.MovieID, movie.Title, movie.ProposedBy, toNanos(movie.CreatedAt), seq,
		)
		return err
	})
	if err != nil {
		return domain.RoomMovie{}, err
	}
	return movie, nil
}

func movieInRoom(ctx context.Context, tx bun.Tx, roomID, roomMovieID string) error {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_movies WHERE id = ? AND room_id = ?`, roomMovieID, roomID,
	).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("movie", roomMovieID)
	}
	return nil
}

func (s *Store) UpsertMovieVote(ctx context.Context, roomID string, vote domain.MovieVote) error {
	return s.inTx(ctx, "vote movie", func(ctx context.Context, tx bun.Tx) error {
		if err := movieInRoom(ctx, tx, roomID, vote.RoomMovieID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO movie_votes (room_movie_id, user_id, vote, voted_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (room_movie_id, user_id) DO UPDATE SET vote = excluded.vote, voted_at = excluded.voted_at`,
			vote.RoomMovieID, vote.UserID, vote.Vote, toNanos(vote.VotedAt),
		)
		return err
	})
}

// AcceptMovie flags roomMovieID and clears every other proposal in one statement.
func (s *Store) AcceptMovie(ctx context.Context, roomID, roomMovieID string) error {
	return s.inTx(ctx, "accept movie", func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.lockRoom(ctx, tx, roomID); err != nil {
			return err
		}
		if err := movieInRoom(ctx, tx, roomID, roomMovieID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE room_movies SET accepted = (id = ?) WHERE room_id = ?`, roomMovieID, roomID)
		return err
	})
}

func (s *Store) ListMovies(ctx context.Context, roomID string) ([]domain.RoomMovie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.room_id, m.movie_id, m.title, m.proposed_by, m.accepted, m.created_at,
		        (SELECT COUNT(*) FROM movie_votes v WHERE v.room_movie_id = m.id AND v.vote = TRUE),
		        (SELECT COUNT(*) FROM movie_votes v WHERE v.room_movie_id = m.id AND v.vote = FALSE)
		 FROM room_movies m
		 WHERE m.room_id = ?
		 ORDER BY m.created_at DESC, m.seq DESC`, roomID)
	if err != nil {
		return nil, domain.Storage("list movies", err)
	}
	defer rows.Close()

	movies := make([]domain.RoomMovie, 0)
	for rows.Next() {
		var (
			m         domain.RoomMovie
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.MovieID, &m.Title, &m.ProposedBy, &m.Accepted, &createdAt, &m.Upvotes, &m.Downvotes); err != nil {
			return nil, domain.Storage("list movies", err)
		}
		m.CreatedAt = fromNanos(createdAt)
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("list movies", err)
	}
	return movies, nil
}

func (s *Store) HasAcceptedMovie(ctx context.Context, roomID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_movies WHERE room_id = ? AND accepted = TRUE`, roomID,
	).Scan(&n); err != nil {
		return false, domain.Storage("has accepted movie", err)
	}
	return n > 0, nil
}
