package domain

import (
	"sort"
	"strings"
	"time"
)

type RoomID string

type RoomKind string

const (
	RoomDirect    RoomKind = "direct"
	RoomGroup     RoomKind = "group"
	RoomCourse    RoomKind = "course"
	RoomBroadcast RoomKind = "broadcast"
)

type PostingPolicy string

const (
	PostingEveryone   PostingPolicy = "everyone"
	PostingAdminsOnly PostingPolicy = "admins_only"
)

type Room struct {
	ID       RoomID   `gorm:"primaryKey;size:36" json:"id"`
	Kind     RoomKind `gorm:"size:16;index" json:"kind"`
	Name     string   `gorm:"size:128" json:"name"`
	CourseID string   `gorm:"size:36;index" json:"course_id,omitempty"`

	// PairKey is set only for direct rooms: both identity ids sorted and
	// joined, so a second "start chat" for the same pair finds this row.
	PairKey string `gorm:"size:80;index:idx_pair" json:"-"`

	Posting       PostingPolicy `gorm:"size:16;default:everyone" json:"posting"`
	FileSharing   bool          `gorm:"default:true" json:"file_sharing"`
	RetentionDays int           `gorm:"default:0" json:"retention_days"`

	Archived       bool      `gorm:"default:false" json:"archived"`
	MessageCount   int64     `json:"message_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`

	Participants []Participant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
}

// Participant is one identity's membership row in a room.
type Participant struct {
	RoomID      RoomID       `gorm:"primaryKey;size:36" json:"-"`
	IdentityID  IdentityID   `gorm:"primaryKey;size:36" json:"identity_id"`
	Role        IdentityRole `gorm:"size:16;default:member" json:"role"`
	Muted       bool         `gorm:"default:false" json:"muted"`
	UnreadCount int64        `json:"unread_count"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
	CreatedAt   time.Time    `json:"-"`
}

// DirectPairKey canonicalizes a pair of identity ids so both call orders
// produce the same key.
func DirectPairKey(a, b IdentityID) string {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Participant returns the membership row for id, if any.
func (r *Room) Participant(id IdentityID) (*Participant, bool) {
	for i := range r.Participants {
		if r.Participants[i].IdentityID == id {
			return &r.Participants[i], true
		}
	}
	return nil, false
}

// CanPost reports whether role satisfies the room's posting policy.
func (r *Room) CanPost(role IdentityRole) bool {
	if r.Posting != PostingAdminsOnly {
		return true
	}
	return role == RoleAdmin || role == RoleModerator
}
