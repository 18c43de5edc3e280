package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/liveclass/internal/domain"
)

// RoomStore is the room side of the persistence collaborator.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	FindDirect(ctx context.Context, pairKey string) (*domain.Room, error)
	AddParticipant(ctx context.Context, p *domain.Participant) error
	TouchLastSeen(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, at time.Time) error
	Archive(ctx context.Context, roomID domain.RoomID) error
}

type roomStore struct {
	db *gorm.DB
}

func NewRoomStore(db *gorm.DB) RoomStore {
	return &roomStore{db: db}
}

func (s *roomStore) Create(ctx context.Context, room *domain.Room) error {
	return s.db.WithContext(ctx).Create(room).Error
}

func (s *roomStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	err := retryRead(func() error {
		room = domain.Room{}
		return s.db.WithContext(ctx).
			Preload("Participants").
			First(&room, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *roomStore) FindDirect(ctx context.Context, pairKey string) (*domain.Room, error) {
	var room domain.Room
	err := retryRead(func() error {
		room = domain.Room{}
		return s.db.WithContext(ctx).
			Preload("Participants").
			Where("kind = ? AND pair_key = ?", domain.RoomDirect, pairKey).
			First(&room).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *roomStore) AddParticipant(ctx context.Context, p *domain.Participant) error {
	// Re-adding an existing participant is a no-op.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p).Error
}

func (s *roomStore) TouchLastSeen(ctx context.Context, roomID domain.RoomID, id domain.IdentityID, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("room_id = ? AND identity_id = ?", roomID, id).
		Update("last_seen_at", at).Error
}

func (s *roomStore) Archive(ctx context.Context, roomID domain.RoomID) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("archived", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
