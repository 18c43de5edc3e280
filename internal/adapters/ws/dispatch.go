package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
)

// Inbound event names — a closed set; anything else is rejected.
const (
	evJoinRoom       = "join_room"
	evLeaveRoom      = "leave_room"
	evCreateDirect   = "create_direct"
	evCreateGroup    = "create_group"
	evRoomHistory    = "room_history"
	evSendMessage    = "send_message"
	evMarkRead       = "mark_read"
	evMarkDelivered  = "mark_delivered"
	evReact          = "react"
	evEditMessage    = "edit_message"
	evDeleteMessage  = "delete_message"
	evStarMessage    = "star_message"
	evForwardMessage = "forward_message"
	evCallInitiate   = "call_initiate"
	evCallAnswer     = "call_answer"
	evCallDecline    = "call_decline"
	evCallEnd        = "call_end"
	evCallHistory    = "call_history"
	evICECandidate   = "ice_candidate"
	evPing           = "ping"
)

func (ctl *Controller) dispatch(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.sendError(c, domain.ErrValidation)
		return
	}

	switch env.Type {
	case evJoinRoom:
		ctl.handleJoinRoom(ctx, identity, c, data)
	case evLeaveRoom:
		ctl.handleLeaveRoom(identity, c, data)
	case evCreateDirect:
		ctl.handleCreateDirect(ctx, identity, c, data)
	case evCreateGroup:
		ctl.handleCreateGroup(ctx, identity, c, data)
	case evRoomHistory:
		ctl.handleRoomHistory(ctx, identity, c, data)
	case evSendMessage:
		ctl.handleSendMessage(ctx, identity, c, data)
	case evMarkRead:
		ctl.handleMark(ctx, identity, c, data, true)
	case evMarkDelivered:
		ctl.handleMark(ctx, identity, c, data, false)
	case evReact:
		ctl.handleReact(ctx, identity, c, data)
	case evEditMessage:
		ctl.handleEdit(ctx, identity, c, data)
	case evDeleteMessage:
		ctl.handleDelete(ctx, identity, c, data)
	case evStarMessage:
		ctl.handleStar(ctx, identity, c, data)
	case evForwardMessage:
		ctl.handleForward(ctx, identity, c, data)
	case evCallInitiate:
		ctl.handleCallInitiate(ctx, identity, c, data)
	case evCallAnswer:
		ctl.handleCallAnswer(ctx, identity, c, data)
	case evCallDecline:
		ctl.handleCallDecline(ctx, identity, c, data)
	case evCallEnd:
		ctl.handleCallEnd(ctx, identity, c, data)
	case evCallHistory:
		ctl.handleCallHistory(ctx, identity, c)
	case evICECandidate:
		ctl.handleCandidate(ctx, identity, c, data)
	case evPing:
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, domain.ErrValidation)
	}
}

// sendError maps a sentinel error onto a structured error event for the
// acting connection only; errors are never broadcast and never fatal.
func (ctl *Controller) sendError(c *wsConn, err error) {
	code := "operation_failed"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrAccessDenied):
		code = "access_denied"
	case errors.Is(err, domain.ErrForbidden):
		code = "forbidden"
	case errors.Is(err, domain.ErrValidation):
		code = "validation_failed"
	case errors.Is(err, domain.ErrAuthFailed):
		code = "authentication_failed"
	}
	ctl.sendJSON(c, domain.ErrorEvent{
		Type:   domain.EvError,
		Code:   code,
		Reason: err.Error(),
	})
}
