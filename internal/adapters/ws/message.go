package ws

import (
	"context"
	"encoding/json"

	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/domain"
)

func (ctl *Controller) handleSendMessage(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type        string              `json:"type"`
		RoomID      domain.RoomID       `json:"room_id"`
		Content     string              `json:"content"`
		MessageType domain.MessageType  `json:"message_type"`
		ReplyToID   domain.MessageID    `json:"reply_to_id"`
		Attachments []domain.Attachment `json:"attachments"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	msg, err := ctl.Messages.Send(ctx, identity, app.SendInput{
		RoomID:      p.RoomID,
		Content:     p.Content,
		Type:        p.MessageType,
		ReplyToID:   p.ReplyToID,
		Attachments: p.Attachments,
	})
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	// The sender also hears new_message through the room scope; this ack
	// carries the persisted id for client-side reconciliation.
	ctl.sendJSON(c, map[string]any{"type": "message_sent", "message_id": msg.ID})
}

func (ctl *Controller) handleMark(ctx context.Context, identity domain.Identity, c *wsConn, data []byte, read bool) {
	var p struct {
		Type       string             `json:"type"`
		RoomID     domain.RoomID      `json:"room_id"`
		MessageIDs []domain.MessageID `json:"message_ids"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	var err error
	if read {
		err = ctl.Messages.MarkRead(ctx, identity, p.RoomID, p.MessageIDs)
	} else {
		err = ctl.Messages.MarkDelivered(ctx, identity, p.RoomID, p.MessageIDs)
	}
	if err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleReact(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"message_id"`
		Emoji     string           `json:"emoji"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Messages.React(ctx, identity, p.MessageID, p.Emoji); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleEdit(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"message_id"`
		Content   string           `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Messages.Edit(ctx, identity, p.MessageID, p.Content); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleDelete(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type        string           `json:"type"`
		MessageID   domain.MessageID `json:"message_id"`
		ForEveryone bool             `json:"for_everyone"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Messages.Delete(ctx, identity, p.MessageID, p.ForEveryone); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleStar(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"message_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Messages.Star(ctx, identity, p.MessageID); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleForward(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type      string           `json:"type"`
		MessageID domain.MessageID `json:"message_id"`
		ToRoomID  domain.RoomID    `json:"to_room_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	msg, err := ctl.Messages.Forward(ctx, identity, p.MessageID, p.ToRoomID)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "message_forwarded", "message_id": msg.ID})
}
