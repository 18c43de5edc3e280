package domain

import "time"

type MessageID string

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageImage        MessageType = "image"
	MessageFile         MessageType = "file"
	MessageVideo        MessageType = "video"
	MessageAudio        MessageType = "audio"
	MessageSystem       MessageType = "system"
	MessageAnnouncement MessageType = "announcement"
)

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// statusRank orders statuses so an update never moves a message backwards.
var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Outranks reports whether s is strictly further along than other.
func (s MessageStatus) Outranks(other MessageStatus) bool {
	return statusRank[s] > statusRank[other]
}

const DeletedPlaceholder = "This message was deleted"

const MaxContentLen = 8192

// Attachment describes an uploaded file by reference; the engine never
// stores file bytes.
type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID MessageID `gorm:"size:36;index" json:"-"`
	URL       string    `gorm:"size:512" json:"url"`
	Name      string    `gorm:"size:255" json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
}

type Message struct {
	ID       MessageID   `gorm:"primaryKey;size:36" json:"id"`
	RoomID   RoomID      `gorm:"size:36;index:idx_room_seq,priority:1" json:"room_id"`
	SenderID IdentityID  `gorm:"size:36;index" json:"sender_id"`
	Content  string      `gorm:"type:text" json:"content"`
	Type     MessageType `gorm:"size:16;default:text" json:"type"`

	// Seq is the per-table insertion counter; ordering within a room is
	// by Seq, which edits and deletes never change.
	Seq uint64 `gorm:"autoIncrement;uniqueIndex;index:idx_room_seq,priority:2" json:"-"`

	Status   MessageStatus `gorm:"size:16;default:sent" json:"status"`
	EditedAt *time.Time    `json:"edited_at,omitempty"`
	Deleted  bool          `gorm:"default:false" json:"deleted"`

	ReplyToID         MessageID `gorm:"size:36" json:"reply_to_id,omitempty"`
	ForwardedFromID   MessageID `gorm:"size:36" json:"forwarded_from_id,omitempty"`
	ForwardedFromRoom string    `gorm:"size:128" json:"forwarded_from_room,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	SenderName   string `gorm:"-" json:"sender_name,omitempty"`
	SenderAvatar string `gorm:"-" json:"sender_avatar,omitempty"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	Receipts    []Receipt    `gorm:"foreignKey:MessageID" json:"receipts,omitempty"`
	Reactions   []Reaction   `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

type ReceiptKind string

const (
	ReceiptDelivered ReceiptKind = "delivered"
	ReceiptRead      ReceiptKind = "read"
)

// Receipt is one recipient's delivered/read mark. The composite primary
// key makes re-marking a no-op at the storage layer.
type Receipt struct {
	MessageID  MessageID   `gorm:"primaryKey;size:36" json:"-"`
	IdentityID IdentityID  `gorm:"primaryKey;size:36" json:"identity_id"`
	Kind       ReceiptKind `gorm:"primaryKey;size:12" json:"kind"`
	At         time.Time   `json:"at"`
}

// Reaction is one (identity, emoji) pair; repeating the pair toggles it off.
type Reaction struct {
	MessageID  MessageID  `gorm:"primaryKey;size:36" json:"-"`
	IdentityID IdentityID `gorm:"primaryKey;size:36" json:"identity_id"`
	Emoji      string     `gorm:"primaryKey;size:32" json:"emoji"`
	CreatedAt  time.Time  `json:"-"`
}

// Star is a private per-identity bookmark; never fanned out to the room.
type Star struct {
	MessageID  MessageID  `gorm:"primaryKey;size:36"`
	IdentityID IdentityID `gorm:"primaryKey;size:36"`
	CreatedAt  time.Time
}

// Deletion is a "delete for me" row: the message stays intact for
// everyone else, this viewer never sees it again.
type Deletion struct {
	MessageID  MessageID  `gorm:"primaryKey;size:36"`
	IdentityID IdentityID `gorm:"primaryKey;size:36"`
	CreatedAt  time.Time
}
