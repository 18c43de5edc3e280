package app

import "github.com/coursehub/liveclass/internal/domain"

// Fanout delivers one logical event to every live connection in a
// scope: a room, a single identity, or everyone. Implementations send
// per-connection and independently; a slow peer is dropped from the
// scope, never waited on.
type Fanout interface {
	ToRoom(roomID domain.RoomID, v any)
	ToIdentity(id domain.IdentityID, v any)
	All(v any)
}
