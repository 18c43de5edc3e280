package domain

import (
	"fmt"
	"time"
)

type CallID string

type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaVideo MediaKind = "video"
)

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallActive    CallStatus = "active"
	CallCompleted CallStatus = "completed"
	CallDeclined  CallStatus = "declined"
	CallMissed    CallStatus = "missed"
)

// Terminal reports whether no further transition is permitted. Late or
// duplicate signals for a terminal call are swallowed, not errored.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallCompleted, CallDeclined, CallMissed:
		return true
	}
	return false
}

// CanTransition encodes the call state machine: initiated is the only
// entry state, active only follows initiated, and every terminal state
// is absorbing.
func (s CallStatus) CanTransition(to CallStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case CallInitiated:
		return to == CallActive || to == CallDeclined || to == CallMissed
	case CallActive:
		return to == CallCompleted
	}
	return false
}

// CallRecord is the durable ledger row for one call attempt, from
// initiation to terminal state. It is the only evidence a call happened
// and the anchor that makes late-signal handling well-defined.
type CallRecord struct {
	ID         CallID     `gorm:"primaryKey;size:100" json:"call_id"`
	CallerID   IdentityID `gorm:"size:36;index" json:"caller_id"`
	ReceiverID IdentityID `gorm:"size:36;index" json:"receiver_id,omitempty"`
	RoomID     RoomID     `gorm:"size:36;index" json:"room_id,omitempty"`
	Media      MediaKind  `gorm:"size:8" json:"media"`
	Status     CallStatus `gorm:"size:12;index" json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationSec int64     `json:"duration_sec"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewCallID builds the caller-receiver-timestamp composite id.
func NewCallID(caller, receiver IdentityID, at time.Time) CallID {
	return CallID(fmt.Sprintf("%s-%s-%d", caller, receiver, at.UnixNano()))
}

// Party reports whether id is the caller or the receiver of this call.
// Group calls authorize through room membership instead.
func (c *CallRecord) Party(id IdentityID) bool {
	return c.CallerID == id || c.ReceiverID == id
}

// Peer returns the other direct party, if id is one of them.
func (c *CallRecord) Peer(id IdentityID) (IdentityID, bool) {
	switch id {
	case c.CallerID:
		return c.ReceiverID, c.ReceiverID != ""
	case c.ReceiverID:
		return c.CallerID, true
	}
	return "", false
}
