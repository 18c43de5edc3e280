package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/liveclass/internal/domain"
)

// MessageStore owns the message table and its set-valued satellites
// (receipts, reactions, stars, per-viewer deletions). Set mutations are
// additive or keyed, so concurrent writers commute.
type MessageStore interface {
	Append(ctx context.Context, msg *domain.Message) error
	Get(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	ListByRoom(ctx context.Context, roomID domain.RoomID, viewer domain.IdentityID, limit int) ([]*domain.Message, error)
	IDsInRoom(ctx context.Context, roomID domain.RoomID) ([]domain.MessageID, error)
	MarkReceipts(ctx context.Context, kind domain.ReceiptKind, roomID domain.RoomID, id domain.IdentityID, ids []domain.MessageID, at time.Time) ([]domain.MessageID, error)
	ToggleReaction(ctx context.Context, messageID domain.MessageID, id domain.IdentityID, emoji string) ([]domain.Reaction, error)
	ToggleStar(ctx context.Context, messageID domain.MessageID, id domain.IdentityID) (bool, error)
	Edit(ctx context.Context, messageID domain.MessageID, content string, at time.Time) error
	DeleteForEveryone(ctx context.Context, messageID domain.MessageID) error
	DeleteForMe(ctx context.Context, messageID domain.MessageID, id domain.IdentityID) error
}

type messageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) MessageStore {
	return &messageStore{db: db}
}

// Append inserts the message and, in the same transaction, bumps the
// room's denormalized counters and every other participant's unread
// count. Ordering within a room is the insertion order this transaction
// commits in.
func (s *messageStore) Append(ctx context.Context, msg *domain.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Room{}).
			Where("id = ?", msg.RoomID).
			Updates(map[string]any{
				"message_count":    gorm.Expr("message_count + 1"),
				"last_activity_at": msg.CreatedAt,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Participant{}).
			Where("room_id = ? AND identity_id <> ?", msg.RoomID, msg.SenderID).
			Update("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

func (s *messageStore) Get(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var msg domain.Message
	err := retryRead(func() error {
		msg = domain.Message{}
		return s.db.WithContext(ctx).
			Preload("Attachments").
			Preload("Reactions").
			Preload("Receipts").
			First(&msg, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByRoom returns the room's messages in insertion order, minus the
// ones this viewer deleted for themselves.
func (s *messageStore) ListByRoom(ctx context.Context, roomID domain.RoomID, viewer domain.IdentityID, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := retryRead(func() error {
		msgs = nil
		q := s.db.WithContext(ctx).
			Preload("Attachments").
			Preload("Reactions").
			Preload("Receipts").
			Where("room_id = ?", roomID).
			Where("id NOT IN (?)", s.db.Model(&domain.Deletion{}).
				Select("message_id").
				Where("identity_id = ?", viewer)).
			Order("seq ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&msgs).Error
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *messageStore) IDsInRoom(ctx context.Context, roomID domain.RoomID) ([]domain.MessageID, error) {
	var ids []domain.MessageID
	err := retryRead(func() error {
		ids = nil
		return s.db.WithContext(ctx).
			Model(&domain.Message{}).
			Where("room_id = ?", roomID).
			Order("seq ASC").
			Pluck("id", &ids).Error
	})
	return ids, err
}

// MarkReceipts inserts one receipt row per (message, identity, kind),
// skipping rows that already exist. It returns the targeted ids when at
// least one new receipt was recorded, nil when everything was a repeat.
// The sender's own messages are excluded: you cannot read your own
// message for receipt purposes.
func (s *messageStore) MarkReceipts(ctx context.Context, kind domain.ReceiptKind, roomID domain.RoomID, id domain.IdentityID, ids []domain.MessageID, at time.Time) ([]domain.MessageID, error) {
	var marked []domain.MessageID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Message{}).
			Where("room_id = ? AND sender_id <> ?", roomID, id)
		if len(ids) > 0 {
			q = q.Where("id IN ?", ids)
		}
		var targets []domain.MessageID
		if err := q.Pluck("id", &targets).Error; err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}

		rows := make([]domain.Receipt, 0, len(targets))
		for _, mid := range targets {
			rows = append(rows, domain.Receipt{
				MessageID:  mid,
				IdentityID: id,
				Kind:       kind,
				At:         at,
			})
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Every receipt already existed; nothing to report.
			return nil
		}
		marked = targets

		// Status is monotonic: delivered never downgrades read.
		status := domain.StatusDelivered
		guard := []any{domain.StatusSending, domain.StatusSent}
		if kind == domain.ReceiptRead {
			status = domain.StatusRead
			guard = append(guard, domain.StatusDelivered)
		}
		if err := tx.Model(&domain.Message{}).
			Where("id IN ? AND status IN ?", targets, guard).
			Update("status", status).Error; err != nil {
			return err
		}

		if kind == domain.ReceiptRead {
			return tx.Model(&domain.Participant{}).
				Where("room_id = ? AND identity_id = ?", roomID, id).
				Update("unread_count", 0).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

// ToggleReaction adds the (identity, emoji) pair or removes it if it is
// already present, then returns the message's full reaction set.
func (s *messageStore) ToggleReaction(ctx context.Context, messageID domain.MessageID, id domain.IdentityID, emoji string) ([]domain.Reaction, error) {
	var out []domain.Reaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND identity_id = ? AND emoji = ?", messageID, id, emoji).
			Delete(&domain.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&domain.Reaction{
				MessageID:  messageID,
				IdentityID: id,
				Emoji:      emoji,
				CreatedAt:  time.Now().UTC(),
			}).Error; err != nil {
				return err
			}
		}
		return tx.Where("message_id = ?", messageID).
			Order("created_at ASC").
			Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleStar flips the viewer's star and reports the new state.
func (s *messageStore) ToggleStar(ctx context.Context, messageID domain.MessageID, id domain.IdentityID) (bool, error) {
	starred := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND identity_id = ?", messageID, id).
			Delete(&domain.Star{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		starred = true
		return tx.Create(&domain.Star{
			MessageID:  messageID,
			IdentityID: id,
			CreatedAt:  time.Now().UTC(),
		}).Error
	})
	return starred, err
}

func (s *messageStore) Edit(ctx context.Context, messageID domain.MessageID, content string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"content":   content,
			"edited_at": at,
		}).Error
}

// DeleteForEveryone replaces the content with the placeholder and sets
// the flag. The row keeps its id and seq, so ordering is untouched.
func (s *messageStore) DeleteForEveryone(ctx context.Context, messageID domain.MessageID) error {
	return s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"content": domain.DeletedPlaceholder,
			"deleted": true,
		}).Error
}

func (s *messageStore) DeleteForMe(ctx context.Context, messageID domain.MessageID, id domain.IdentityID) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Deletion{
			MessageID:  messageID,
			IdentityID: id,
			CreatedAt:  time.Now().UTC(),
		}).Error
}
