package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
	"github.com/coursehub/liveclass/internal/store"
)

// Messages is the message lifecycle engine: send, deliver, read, edit,
// delete, react, star, forward. Authorization failures never mutate
// state and are reported to the acting connection only.
type Messages struct {
	rooms      store.RoomStore
	messages   store.MessageStore
	membership *Membership
	fanout     Fanout
}

func NewMessages(rooms store.RoomStore, messages store.MessageStore, membership *Membership, fanout Fanout) *Messages {
	return &Messages{rooms: rooms, messages: messages, membership: membership, fanout: fanout}
}

// SendInput is a validated send request.
type SendInput struct {
	RoomID      domain.RoomID
	Content     string
	Type        domain.MessageType
	ReplyToID   domain.MessageID
	Attachments []domain.Attachment
}

func (in *SendInput) validate() error {
	if in.RoomID == "" {
		return domain.ErrValidation
	}
	if in.Content == "" && len(in.Attachments) == 0 {
		return domain.ErrValidation
	}
	if len(in.Content) > domain.MaxContentLen {
		return domain.ErrValidation
	}
	switch in.Type {
	case "":
		in.Type = domain.MessageText
	case domain.MessageText, domain.MessageImage, domain.MessageFile,
		domain.MessageVideo, domain.MessageAudio, domain.MessageSystem,
		domain.MessageAnnouncement:
	default:
		return domain.ErrValidation
	}
	return nil
}

// Send appends a message with status sent, bumps the room's activity
// and fans out new_message to every connection bound to the room.
func (m *Messages) Send(ctx context.Context, sender domain.Identity, in SendInput) (*domain.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	room, err := m.rooms.Get(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if err := m.membership.AuthorizePost(room, sender); err != nil {
		return nil, err
	}
	if len(in.Attachments) > 0 && !room.FileSharing {
		return nil, domain.ErrForbidden
	}

	msg := &domain.Message{
		ID:          domain.MessageID(uuid.NewString()),
		RoomID:      in.RoomID,
		SenderID:    sender.ID,
		Content:     in.Content,
		Type:        in.Type,
		Status:      domain.StatusSent,
		ReplyToID:   in.ReplyToID,
		CreatedAt:   time.Now().UTC(),
		Attachments: in.Attachments,
	}
	for i := range msg.Attachments {
		msg.Attachments[i].MessageID = msg.ID
	}
	if err := m.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}

	msg.SenderName = sender.Name
	msg.SenderAvatar = sender.Avatar
	m.fanout.ToRoom(in.RoomID, domain.NewMessage{
		Type:    domain.EvNewMessage,
		RoomID:  in.RoomID,
		Message: msg,
	})
	log.Info().Str("module", "app.messages").
		Str("room", string(in.RoomID)).
		Str("message", string(msg.ID)).
		Msg("message sent")
	return msg, nil
}

// MarkRead records read receipts. Omitting ids applies to every message
// in the room; re-marking and self-marking are no-ops. Senders of the
// affected messages learn about it via messages_read.
func (m *Messages) MarkRead(ctx context.Context, identity domain.Identity, roomID domain.RoomID, ids []domain.MessageID) error {
	return m.mark(ctx, domain.ReceiptRead, identity, roomID, ids)
}

// MarkDelivered records delivery receipts with the same idempotence
// rules as MarkRead, without a fanout event of its own.
func (m *Messages) MarkDelivered(ctx context.Context, identity domain.Identity, roomID domain.RoomID, ids []domain.MessageID) error {
	return m.mark(ctx, domain.ReceiptDelivered, identity, roomID, ids)
}

func (m *Messages) mark(ctx context.Context, kind domain.ReceiptKind, identity domain.Identity, roomID domain.RoomID, ids []domain.MessageID) error {
	if roomID == "" {
		return domain.ErrValidation
	}
	if err := m.canView(ctx, identity, roomID); err != nil {
		return err
	}

	marked, err := m.messages.MarkReceipts(ctx, kind, roomID, identity.ID, ids, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	if kind == domain.ReceiptRead && len(marked) > 0 {
		m.fanout.ToRoom(roomID, domain.MessagesRead{
			Type:       domain.EvMessagesRead,
			RoomID:     roomID,
			Identity:   identity.ID,
			MessageIDs: marked,
		})
	}
	return nil
}

// React toggles the (identity, emoji) pair and fans the message's new
// reaction set out to the room.
func (m *Messages) React(ctx context.Context, identity domain.Identity, messageID domain.MessageID, emoji string) error {
	if messageID == "" || emoji == "" || len(emoji) > 32 {
		return domain.ErrValidation
	}
	msg, err := m.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if err := m.canView(ctx, identity, msg.RoomID); err != nil {
		return err
	}
	reactions, err := m.messages.ToggleReaction(ctx, messageID, identity.ID, emoji)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	m.fanout.ToRoom(msg.RoomID, domain.MessageReaction{
		Type:      domain.EvMessageReaction,
		RoomID:    msg.RoomID,
		MessageID: messageID,
		Reactions: reactions,
	})
	return nil
}

// Edit replaces content; only the original sender may edit, and status
// and position are untouched.
func (m *Messages) Edit(ctx context.Context, identity domain.Identity, messageID domain.MessageID, content string) error {
	if content == "" || len(content) > domain.MaxContentLen {
		return domain.ErrValidation
	}
	msg, err := m.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != identity.ID {
		return domain.ErrForbidden
	}
	if msg.Deleted {
		return domain.ErrForbidden
	}
	at := time.Now().UTC()
	if err := m.messages.Edit(ctx, messageID, content, at); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	m.fanout.ToRoom(msg.RoomID, domain.MessageEdited{
		Type:      domain.EvMessageEdited,
		RoomID:    msg.RoomID,
		MessageID: messageID,
		Content:   content,
		EditedAt:  at,
	})
	return nil
}

// Delete removes a message for everyone (sender only; content replaced
// by a placeholder, irreversibly) or just for the caller.
func (m *Messages) Delete(ctx context.Context, identity domain.Identity, messageID domain.MessageID, forEveryone bool) error {
	msg, err := m.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if forEveryone {
		if msg.SenderID != identity.ID {
			return domain.ErrForbidden
		}
		if err := m.messages.DeleteForEveryone(ctx, messageID); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
		}
		m.fanout.ToRoom(msg.RoomID, domain.MessageDeleted{
			Type:        domain.EvMessageDeleted,
			RoomID:      msg.RoomID,
			MessageID:   messageID,
			ForEveryone: true,
		})
		return nil
	}
	if err := m.messages.DeleteForMe(ctx, messageID, identity.ID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	// Private: only the acting identity's own connections hear about it.
	m.fanout.ToIdentity(identity.ID, domain.MessageDeleted{
		Type:      domain.EvMessageDeleted,
		RoomID:    msg.RoomID,
		MessageID: messageID,
	})
	return nil
}

// Star toggles the caller's private star; the result is echoed to the
// caller's connections and never broadcast to the room.
func (m *Messages) Star(ctx context.Context, identity domain.Identity, messageID domain.MessageID) error {
	msg, err := m.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if err := m.canView(ctx, identity, msg.RoomID); err != nil {
		return err
	}
	starred, err := m.messages.ToggleStar(ctx, messageID, identity.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	m.fanout.ToIdentity(identity.ID, domain.MessageStarred{
		Type:      domain.EvMessageStarred,
		MessageID: messageID,
		Starred:   starred,
	})
	return nil
}

// Forward copies the message by value into the target room with a
// backlink to the original; the original is untouched and later edits
// to it do not propagate.
func (m *Messages) Forward(ctx context.Context, identity domain.Identity, messageID domain.MessageID, toRoomID domain.RoomID) (*domain.Message, error) {
	if toRoomID == "" {
		return nil, domain.ErrValidation
	}
	orig, err := m.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if orig.Deleted {
		return nil, domain.ErrForbidden
	}
	fromRoom, err := m.rooms.Get(ctx, orig.RoomID)
	if err != nil {
		return nil, err
	}
	if _, ok := fromRoom.Participant(identity.ID); !ok && fromRoom.Kind != domain.RoomBroadcast {
		return nil, domain.ErrAccessDenied
	}
	target, err := m.rooms.Get(ctx, toRoomID)
	if err != nil {
		return nil, err
	}
	if err := m.membership.AuthorizePost(target, identity); err != nil {
		return nil, err
	}

	copied := make([]domain.Attachment, len(orig.Attachments))
	for i, a := range orig.Attachments {
		copied[i] = domain.Attachment{URL: a.URL, Name: a.Name, Size: a.Size, MimeType: a.MimeType}
	}
	msg := &domain.Message{
		ID:                domain.MessageID(uuid.NewString()),
		RoomID:            toRoomID,
		SenderID:          identity.ID,
		Content:           orig.Content,
		Type:              orig.Type,
		Status:            domain.StatusSent,
		ForwardedFromID:   orig.ID,
		ForwardedFromRoom: fromRoom.Name,
		CreatedAt:         time.Now().UTC(),
		Attachments:       copied,
	}
	for i := range msg.Attachments {
		msg.Attachments[i].MessageID = msg.ID
	}
	if err := m.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}

	msg.SenderName = identity.Name
	msg.SenderAvatar = identity.Avatar
	m.fanout.ToRoom(toRoomID, domain.NewMessage{
		Type:    domain.EvNewMessage,
		RoomID:  toRoomID,
		Message: msg,
	})
	return msg, nil
}

// canView admits participants, and anyone for broadcast rooms.
func (m *Messages) canView(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error {
	room, err := m.rooms.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if _, ok := room.Participant(identity.ID); !ok && room.Kind != domain.RoomBroadcast {
		return domain.ErrAccessDenied
	}
	return nil
}

// History returns the room's messages as this viewer sees them:
// insertion order, minus the viewer's delete-for-me set.
func (m *Messages) History(ctx context.Context, identity domain.Identity, roomID domain.RoomID, limit int) ([]*domain.Message, error) {
	if err := m.canView(ctx, identity, roomID); err != nil {
		return nil, err
	}
	msgs, err := m.messages.ListByRoom(ctx, roomID, identity.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return msgs, nil
}
