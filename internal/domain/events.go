package domain

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Outbound event names. Every payload fanned out to clients carries one
// of these in its "type" field.
const (
	EvPresenceChanged = "presence_changed"
	EvOnlineCount     = "online_count"
	EvRoomJoined      = "room_joined"
	EvMemberJoined    = "member_joined"
	EvMemberLeft      = "member_left"
	EvNewMessage      = "new_message"
	EvMessageReaction = "message_reaction"
	EvMessageEdited   = "message_edited"
	EvMessageDeleted  = "message_deleted"
	EvMessageStarred  = "message_starred"
	EvMessagesRead    = "messages_read"
	EvRoomHistory     = "room_history"
	EvCallIncoming    = "call_incoming"
	EvCallAnswered    = "call_answered"
	EvCallDeclined    = "call_declined"
	EvCallEnded       = "call_ended"
	EvCallHistory     = "call_history"
	EvICECandidate    = "ice_candidate"
	EvError           = "error"
)

type PresenceChanged struct {
	Type     string     `json:"type"`
	Identity IdentityID `json:"identity"`
	Name     string     `json:"name,omitempty"`
	Online   bool       `json:"online"`
}

type OnlineCount struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

type RoomJoined struct {
	Type    string      `json:"type"`
	RoomID  RoomID      `json:"room_id"`
	Room    *Room       `json:"room,omitempty"`
	Members []Identity  `json:"members,omitempty"`
}

type MemberEvent struct {
	Type   string   `json:"type"`
	RoomID RoomID   `json:"room_id"`
	Member Identity `json:"member"`
}

type NewMessage struct {
	Type    string   `json:"type"`
	RoomID  RoomID   `json:"room_id"`
	Message *Message `json:"message"`
}

type MessageReaction struct {
	Type      string     `json:"type"`
	RoomID    RoomID     `json:"room_id"`
	MessageID MessageID  `json:"message_id"`
	Reactions []Reaction `json:"reactions"`
}

type MessageEdited struct {
	Type      string    `json:"type"`
	RoomID    RoomID    `json:"room_id"`
	MessageID MessageID `json:"message_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

type MessageDeleted struct {
	Type        string    `json:"type"`
	RoomID      RoomID    `json:"room_id"`
	MessageID   MessageID `json:"message_id"`
	ForEveryone bool      `json:"for_everyone"`
}

type MessageStarred struct {
	Type      string    `json:"type"`
	MessageID MessageID `json:"message_id"`
	Starred   bool      `json:"starred"`
}

type MessagesRead struct {
	Type       string      `json:"type"`
	RoomID     RoomID      `json:"room_id"`
	Identity   IdentityID  `json:"identity"`
	MessageIDs []MessageID `json:"message_ids"`
}

type RoomHistory struct {
	Type     string     `json:"type"`
	RoomID   RoomID     `json:"room_id"`
	Messages []*Message `json:"messages"`
}

type CallIncoming struct {
	Type   string                    `json:"type"`
	CallID CallID                    `json:"call_id"`
	From   Identity                  `json:"from"`
	RoomID RoomID                    `json:"room_id,omitempty"`
	Media  MediaKind                 `json:"media"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type CallAnswered struct {
	Type   string                    `json:"type"`
	CallID CallID                    `json:"call_id"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type CallDeclinedEvent struct {
	Type   string `json:"type"`
	CallID CallID `json:"call_id"`
}

type CallEnded struct {
	Type        string     `json:"type"`
	CallID      CallID     `json:"call_id"`
	Status      CallStatus `json:"status"`
	DurationSec int64      `json:"duration_sec"`
}

type CallHistory struct {
	Type  string        `json:"type"`
	Calls []*CallRecord `json:"calls"`
}

type ICECandidate struct {
	Type      string                  `json:"type"`
	CallID    CallID                  `json:"call_id"`
	From      IdentityID              `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type ErrorEvent struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
