package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"watchparty-quiz/internal/domain"
)

const codeAttempts = 5

// CreateRoom opens a voting room hosted by hostID, who joins as first member.
func (s *Service) CreateRoom(ctx context.Context, hostID, hostName string) (domain.Room, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return domain.Room{}, domain.Errorf(domain.KindValidation, "host id is required")
	}
	now := s.now()

	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		room := domain.Room{
			ID:        uuid.NewString(),
			Code:      generateRoomCode(),
			HostID:    hostID,
			Status:    domain.StatusVoting,
			CreatedAt: now,
		}
		host := domain.Member{
			RoomID:      room.ID,
			UserID:      hostID,
			DisplayName: strings.TrimSpace(hostName),
			JoinedAt:    now,
		}
		err := s.store.CreateRoom(ctx, room, host)
		if err == nil {
			s.log.Info("room created", "room_id", room.ID, "code", room.Code)
			return room, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Room{}, s.logFailure("create room", err)
		}
		lastErr = err
	}
	return domain.Room{}, lastErr
}

// JoinRoom adds userID to the room with the given code. Joining twice
// returns the existing membership.
func (s *Service) JoinRoom(ctx context.Context, code, userID, name string) (domain.Room, domain.Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Room{}, domain.Member{}, domain.Errorf(domain.KindValidation, "user id is required")
	}
	room, err := s.store.GetRoomByCode(ctx, domain.NormalizeCode(code))
	if err != nil {
		return domain.Room{}, domain.Member{}, err
	}

	member, created, err := s.store.AddMember(ctx, domain.Member{
		RoomID:      room.ID,
		UserID:      userID,
		DisplayName: strings.TrimSpace(name),
		JoinedAt:    s.now(),
	})
	if err != nil {
		return domain.Room{}, domain.Member{}, s.logFailure("join room", err, "room_id", room.ID)
	}
	if created {
		s.dropResults(ctx, room.ID)
		s.emit(ctx, room.ID, domain.TopicRoomMembers)
	}
	return room, member, nil
}

func (s *Service) Room(ctx context.Context, roomID string) (domain.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

func (s *Service) RoomByCode(ctx context.Context, code string) (domain.Room, error) {
	return s.store.GetRoomByCode(ctx, domain.NormalizeCode(code))
}

// Member returns userID's membership of the room.
func (s *Service) Member(ctx context.Context, roomID, userID string) (domain.Member, error) {
	return s.store.GetMember(ctx, roomID, userID)
}

// Members lists room members in join order, host included.
func (s *Service) Members(ctx context.Context, roomID string) ([]domain.Member, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, roomID)
}

func generateRoomCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	var builder strings.Builder
	builder.Grow(domain.RoomCodeLength)
	for i := 0; i < domain.RoomCodeLength; i++ {
		builder.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return builder.String()
}
