// Package domain contains the engine's entities: mostly data, with the
// small pieces of pure logic (status ranks, call transitions) that the
// stores and engines share.
package domain

type IdentityID string

type IdentityRole string

const (
	RoleAdmin     IdentityRole = "admin"
	RoleModerator IdentityRole = "moderator"
	RoleMember    IdentityRole = "member"
)

// Identity is the snapshot the auth collaborator hands us at connect
// time. It is never persisted here; rooms store only the id.
type Identity struct {
	ID     IdentityID   `json:"id"`
	Name   string       `json:"name"`
	Avatar string       `json:"avatar,omitempty"`
	Role   IdentityRole `json:"role"`
	Active bool         `json:"-"`
}
