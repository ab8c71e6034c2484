package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"watchparty-quiz/internal/domain"
)

// ProposeMovie adds a movie proposal while the room is voting.
func (s *Service) ProposeMovie(ctx context.Context, roomID, userID, movieID, title string) (domain.RoomMovie, error) {
	room, err := s.votingMember(ctx, roomID, userID, "propose movies")
	if err != nil {
		return domain.RoomMovie{}, err
	}
	movieID = strings.TrimSpace(movieID)
	title = strings.TrimSpace(title)
	if movieID == "" || title == "" {
		return domain.RoomMovie{}, domain.Errorf(domain.KindValidation, "movie id and title are required")
	}

	movie, err := s.store.ProposeMovie(ctx, domain.RoomMovie{
		ID:         uuid.NewString(),
		RoomID:     room.ID,
		MovieID:    movieID,
		Title:      title,
		ProposedBy: userID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.RoomMovie{}, s.logFailure("propose movie", err, "room_id", roomID)
	}
	s.emit(ctx, room.ID, domain.TopicRoomMovies)
	return movie, nil
}

// VoteMovie records or replaces a member's vote on a proposal.
func (s *Service) VoteMovie(ctx context.Context, roomID, roomMovieID, userID string, vote bool) error {
	room, err := s.votingMember(ctx, roomID, userID, "vote")
	if err != nil {
		return err
	}
	if err := s.store.UpsertMovieVote(ctx, room.ID, domain.MovieVote{
		RoomMovieID: roomMovieID,
		UserID:      userID,
		Vote:        vote,
		VotedAt:     s.now(),
	}); err != nil {
		return s.logFailure("vote movie", err, "room_id", roomID)
	}
	s.emit(ctx, room.ID, domain.TopicRoomMovies)
	return nil
}

// AcceptMovie selects the room's movie. Only one proposal stays accepted.
func (s *Service) AcceptMovie(ctx context.Context, roomID, roomMovieID, actorID string) error {
	room, err := s.hostRoom(ctx, roomID, actorID, "accept a movie")
	if err != nil {
		return err
	}
	if room.Status != domain.StatusVoting {
		return domain.InvalidTransition("accepting a movie", room.Status)
	}
	if err := s.store.AcceptMovie(ctx, room.ID, roomMovieID); err != nil {
		return s.logFailure("accept movie", err, "room_id", roomID)
	}
	s.log.Info("movie accepted", "room_id", room.ID, "room_movie_id", roomMovieID)
	s.emit(ctx, room.ID, domain.TopicRoomMovies)
	return nil
}

// Movies lists proposals, newest first, with vote tallies.
func (s *Service) Movies(ctx context.Context, roomID string) ([]domain.RoomMovie, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListMovies(ctx, roomID)
}

func (s *Service) votingMember(ctx context.Context, roomID, userID, op string) (domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if _, err := s.store.GetMember(ctx, room.ID, userID); err != nil {
		return domain.Room{}, err
	}
	if room.Status != domain.StatusVoting {
		return domain.Room{}, domain.InvalidTransition(op, room.Status)
	}
	return room, nil
}
