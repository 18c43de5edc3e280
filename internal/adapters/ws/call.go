package ws

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/coursehub/liveclass/internal/domain"
)

func (ctl *Controller) handleCallInitiate(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type     string                    `json:"type"`
		Receiver domain.IdentityID         `json:"receiver"`
		RoomID   domain.RoomID             `json:"room_id"`
		Media    domain.MediaKind          `json:"media"`
		Offer    webrtc.SessionDescription `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Offer.SDP == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	rec, err := ctl.Calls.Initiate(ctx, identity, p.Receiver, p.RoomID, p.Media, p.Offer)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{"type": "call_initiated", "call_id": rec.ID})
}

func (ctl *Controller) handleCallAnswer(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string                    `json:"type"`
		CallID domain.CallID             `json:"call_id"`
		Answer webrtc.SessionDescription `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Answer.SDP == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Calls.Answer(ctx, identity, p.CallID, p.Answer); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallDecline(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"call_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Calls.Decline(ctx, identity, p.CallID); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallEnd(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type   string        `json:"type"`
		CallID domain.CallID `json:"call_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Calls.End(ctx, identity, p.CallID); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleCallHistory(ctx context.Context, identity domain.Identity, c *wsConn) {
	recs, err := ctl.Calls.History(ctx, identity.ID, ctl.Cfg.HistoryLimit)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, domain.CallHistory{Type: domain.EvCallHistory, Calls: recs})
}

func (ctl *Controller) handleCandidate(ctx context.Context, identity domain.Identity, c *wsConn, data []byte) {
	var p struct {
		Type      string                  `json:"type"`
		CallID    domain.CallID           `json:"call_id"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Candidate.Candidate == "" {
		ctl.sendError(c, domain.ErrValidation)
		return
	}
	if err := ctl.Calls.RelayCandidate(ctx, identity, p.CallID, p.Candidate); err != nil {
		ctl.sendError(c, err)
	}
}
