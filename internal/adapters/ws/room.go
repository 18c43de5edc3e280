package ws

import (
	"context"
	"encoding/json"

	"github.com/coursehub/liveclass/internal/domain"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"room_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}

	room, err := ctl.Membership.Join(ctx, identity, c.id, p.RoomID)
	if err != nil {
		ctl.sendError(c, err)
		return
	}

	members := make([]domain.Identity, 0, len(room.Participants))
	for _, part := range room.Participants {
		members = append(members, domain.Identity{ID: part.IdentityID, Role: part.Role})
	}
	ctl.sendJSON(c, domain.RoomJoined{
		Type:    domain.EvRoomJoined,
		RoomID:  room.ID,
		Room:    room,
		Members: members,
	})
}

func (ctl *Controller) handleLeaveRoom(identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"room_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	ctl.Membership.Leave(identity, c.id, p.RoomID)
	ctl.sendJSON(c, map[string]any{"type": "room_left", "room_id": p.RoomID})
}

func (ctl *Controller) handleCreateDirect(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type string            `json:"type"`
		With domain.IdentityID `json:"with"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.With == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	room, err := ctl.Membership.CreateDirect(ctx, identity, p.With)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "room_created", "room": room})
}

func (ctl *Controller) handleCreateGroup(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type    string              `json:"type"`
		Name    string              `json:"name"`
		Members []domain.IdentityID `json:"members"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Name == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	room, err := ctl.Membership.CreateGroup(ctx, identity, p.Name, p.Members)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "room_created", "room": room})
}

func (ctl *Controller) handleRoomHistory(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		RoomID domain.RoomID `json:"room_id"`
		Limit  int           `json:"limit"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	limit := p.Limit
	if limit <= 0 || limit > ctl.Cfg.HistoryLimit {
		limit = ctl.Cfg.HistoryLimit
	}
	msgs, err := ctl.Messages.History(ctx, identity, p.RoomID, limit)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, domain.RoomHistory{
		Type:     domain.EvRoomHistory,
		RoomID:   p.RoomID,
		Messages: msgs,
	})
}
