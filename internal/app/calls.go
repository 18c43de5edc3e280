package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
	"github.com/coursehub/liveclass/internal/store"
)

// Calls is the signaling relay. It brokers offer/answer/candidate
// exchange between parties and keeps the durable call ledger; it never
// touches media. All state transitions go through the store's guard, so
// late or duplicate signals on a terminal call are swallowed.
type Calls struct {
	calls  store.CallStore
	rooms  store.RoomStore
	reg    *Registry
	fanout Fanout

	ringTimeout time.Duration

	mu     sync.Mutex
	timers map[domain.CallID]*time.Timer
}

func NewCalls(calls store.CallStore, rooms store.RoomStore, reg *Registry, fanout Fanout, ringTimeout time.Duration) *Calls {
	return &Calls{
		calls:       calls,
		rooms:       rooms,
		reg:         reg,
		fanout:      fanout,
		ringTimeout: ringTimeout,
		timers:      make(map[domain.CallID]*time.Timer),
	}
}

// Initiate writes the CallRecord in initiated state and relays the
// offer to the receiver's live connections only (or to the call-scoped
// room for group calls). Never broadcast beyond the intended receivers.
func (c *Calls) Initiate(ctx context.Context, caller domain.Identity, receiver domain.IdentityID, roomID domain.RoomID, media domain.MediaKind, offer webrtc.SessionDescription) (*domain.CallRecord, error) {
	if media != domain.MediaVoice && media != domain.MediaVideo {
		return nil, domain.ErrValidation
	}
	if (receiver == "") == (roomID == "") {
		return nil, domain.ErrValidation
	}
	if receiver == caller.ID {
		return nil, domain.ErrValidation
	}
	if roomID != "" {
		room, err := c.rooms.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if _, ok := room.Participant(caller.ID); !ok {
			return nil, domain.ErrAccessDenied
		}
	}

	now := time.Now().UTC()
	rec := &domain.CallRecord{
		ID:         domain.NewCallID(caller.ID, receiver, now),
		CallerID:   caller.ID,
		ReceiverID: receiver,
		RoomID:     roomID,
		Media:      media,
		Status:     domain.CallInitiated,
		StartedAt:  now,
	}
	if err := c.calls.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}

	incoming := domain.CallIncoming{
		Type:   domain.EvCallIncoming,
		CallID: rec.ID,
		From:   caller,
		RoomID: roomID,
		Media:  media,
		Offer:  offer,
	}
	if roomID != "" {
		c.fanout.ToRoom(roomID, incoming)
	} else {
		c.fanout.ToIdentity(receiver, incoming)
	}

	c.armRingTimer(rec.ID)
	log.Info().Str("module", "app.calls").
		Str("call", string(rec.ID)).
		Str("caller", string(caller.ID)).
		Str("media", string(media)).
		Msg("call initiated")
	return rec, nil
}

// Answer moves initiated → active, stamps answer time and relays the
// answer back to the caller.
func (c *Calls) Answer(ctx context.Context, identity domain.Identity, callID domain.CallID, answer webrtc.SessionDescription) error {
	rec, err := c.authorizedCall(ctx, identity.ID, callID)
	if err != nil {
		return err
	}
	if rec.RoomID == "" && identity.ID == rec.CallerID {
		return domain.ErrForbidden
	}
	now := time.Now().UTC()
	rec, applied, err := c.calls.Transition(ctx, callID, domain.CallActive, func(r *domain.CallRecord) {
		r.AnsweredAt = &now
	})
	if err != nil {
		return c.transitionErr(err)
	}
	if !applied {
		return nil
	}
	c.disarmRingTimer(callID)

	ev := domain.CallAnswered{Type: domain.EvCallAnswered, CallID: callID, Answer: answer}
	if rec.RoomID != "" {
		c.fanout.ToRoom(rec.RoomID, ev)
	} else {
		c.fanout.ToIdentity(rec.CallerID, ev)
	}
	return nil
}

// Decline moves initiated → declined and tells the caller. Declining a
// terminal call is a silent no-op.
func (c *Calls) Decline(ctx context.Context, identity domain.Identity, callID domain.CallID) error {
	rec, err := c.authorizedCall(ctx, identity.ID, callID)
	if err != nil {
		return err
	}
	if rec.RoomID == "" && identity.ID == rec.CallerID {
		return domain.ErrForbidden
	}
	now := time.Now().UTC()
	rec, applied, err := c.calls.Transition(ctx, callID, domain.CallDeclined, func(r *domain.CallRecord) {
		r.EndedAt = &now
	})
	if err != nil {
		return c.transitionErr(err)
	}
	if !applied {
		return nil
	}
	c.disarmRingTimer(callID)

	ev := domain.CallDeclinedEvent{Type: domain.EvCallDeclined, CallID: callID}
	if rec.RoomID != "" {
		c.fanout.ToRoom(rec.RoomID, ev)
	} else {
		c.fanout.ToIdentity(rec.CallerID, ev)
	}
	return nil
}

// End moves active → completed, stamps end time and duration, and tells
// the other party. Ending an already-terminal call is a silent no-op.
func (c *Calls) End(ctx context.Context, identity domain.Identity, callID domain.CallID) error {
	rec, err := c.authorizedCall(ctx, identity.ID, callID)
	if err != nil {
		return err
	}
	if rec.Status == domain.CallInitiated && rec.CallerID == identity.ID {
		// Caller hung up while ringing: that is a missed call.
		return c.timeout(ctx, callID)
	}
	now := time.Now().UTC()
	rec, applied, err := c.calls.Transition(ctx, callID, domain.CallCompleted, func(r *domain.CallRecord) {
		r.EndedAt = &now
		if r.AnsweredAt != nil {
			r.DurationSec = int64(now.Sub(*r.AnsweredAt) / time.Second)
		}
	})
	if err != nil {
		return c.transitionErr(err)
	}
	if !applied {
		return nil
	}
	c.emitEnded(rec)
	return nil
}

// RelayCandidate is store-less forwarding: no persistence, no
// validation beyond "sender is a party to this call".
func (c *Calls) RelayCandidate(ctx context.Context, from domain.Identity, callID domain.CallID, cand webrtc.ICECandidateInit) error {
	rec, err := c.authorizedCall(ctx, from.ID, callID)
	if err != nil {
		return err
	}
	ev := domain.ICECandidate{
		Type:      domain.EvICECandidate,
		CallID:    callID,
		From:      from.ID,
		Candidate: cand,
	}
	if rec.RoomID != "" {
		c.fanout.ToRoom(rec.RoomID, ev)
		return nil
	}
	peer, ok := rec.Peer(from.ID)
	if !ok {
		return domain.ErrNotFound
	}
	c.fanout.ToIdentity(peer, ev)
	return nil
}

// HandleOffline treats an identity going fully offline as an implicit
// end (active calls) or missed (still-ringing calls) for every call it
// is a party to.
func (c *Calls) HandleOffline(ctx context.Context, id domain.IdentityID) {
	recs, err := c.calls.OpenCallsFor(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.calls").
			Str("identity", string(id)).Msg("open calls lookup on disconnect")
		return
	}
	for _, rec := range recs {
		switch rec.Status {
		case domain.CallInitiated:
			_ = c.timeout(ctx, rec.ID)
		case domain.CallActive:
			now := time.Now().UTC()
			rec, applied, err := c.calls.Transition(ctx, rec.ID, domain.CallCompleted, func(r *domain.CallRecord) {
				r.EndedAt = &now
				if r.AnsweredAt != nil {
					r.DurationSec = int64(now.Sub(*r.AnsweredAt) / time.Second)
				}
			})
			if err == nil && applied {
				c.emitEnded(rec)
			}
		}
	}
}

// History returns the identity's recent call ledger entries.
func (c *Calls) History(ctx context.Context, id domain.IdentityID, limit int) ([]*domain.CallRecord, error) {
	recs, err := c.calls.HistoryFor(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return recs, nil
}

// timeout degrades a still-ringing call to missed.
func (c *Calls) timeout(ctx context.Context, callID domain.CallID) error {
	now := time.Now().UTC()
	rec, applied, err := c.calls.Transition(ctx, callID, domain.CallMissed, func(r *domain.CallRecord) {
		r.EndedAt = &now
	})
	if err != nil {
		return c.transitionErr(err)
	}
	if !applied {
		return nil
	}
	c.disarmRingTimer(callID)
	c.emitEnded(rec)
	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("call missed")
	return nil
}

func (c *Calls) emitEnded(rec *domain.CallRecord) {
	ev := domain.CallEnded{
		Type:        domain.EvCallEnded,
		CallID:      rec.ID,
		Status:      rec.Status,
		DurationSec: rec.DurationSec,
	}
	if rec.RoomID != "" {
		c.fanout.ToRoom(rec.RoomID, ev)
		return
	}
	c.fanout.ToIdentity(rec.CallerID, ev)
	if rec.ReceiverID != "" {
		c.fanout.ToIdentity(rec.ReceiverID, ev)
	}
}

func (c *Calls) armRingTimer(callID domain.CallID) {
	if c.ringTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[callID] = time.AfterFunc(c.ringTimeout, func() {
		// Re-checked against the store inside timeout; a call answered
		// in the meantime is left alone.
		if err := c.timeout(context.Background(), callID); err != nil {
			log.Warn().Err(err).Str("module", "app.calls").
				Str("call", string(callID)).Msg("ring timeout")
		}
	})
}

func (c *Calls) disarmRingTimer(callID domain.CallID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[callID]; ok {
		t.Stop()
		delete(c.timers, callID)
	}
}

// authorizedCall loads the record and checks the acting identity is a
// party to it (direct) or a member of its room (group).
func (c *Calls) authorizedCall(ctx context.Context, id domain.IdentityID, callID domain.CallID) (*domain.CallRecord, error) {
	if callID == "" {
		return nil, domain.ErrValidation
	}
	rec, err := c.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if rec.RoomID != "" {
		room, err := c.rooms.Get(ctx, rec.RoomID)
		if err != nil {
			return nil, err
		}
		if _, ok := room.Participant(id); !ok {
			return nil, domain.ErrAccessDenied
		}
		return rec, nil
	}
	if !rec.Party(id) {
		return nil, domain.ErrAccessDenied
	}
	return rec, nil
}

func (c *Calls) transitionErr(err error) error {
	if err == domain.ErrNotFound {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}
