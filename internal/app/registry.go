// Package app holds the engine components: the session registry, the
// room membership authority, the message lifecycle engine and the call
// signaling relay. Transport lives in adapters; persistence in store.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
)

// Frame is a marshaled event payload.
type Frame []byte

// Conn is one live client connection. TrySend must not block: a full
// send buffer is an error, and a slow peer never stalls anyone else.
type Conn interface {
	ID() string
	TrySend(f Frame) error
	Close()
}

type connEntry struct {
	conn     Conn
	identity domain.Identity
	rooms    map[domain.RoomID]bool
	cancel   context.CancelFunc
	joinedAt time.Time
}

// Registry maps authenticated identities to their live connections. An
// identity is online iff it has at least one connection; multi-device
// is the normal case, not an exception.
type Registry struct {
	mu         sync.RWMutex
	conns      map[string]*connEntry
	byIdentity map[domain.IdentityID]map[string]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[string]*connEntry),
		byIdentity: make(map[domain.IdentityID]map[string]*connEntry),
	}
}

// Register adds a connection under the identity's entry and reports
// whether this brought the identity online.
func (r *Registry) Register(identity domain.Identity, c Conn, cancel context.CancelFunc) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := &connEntry{
		conn:     c,
		identity: identity,
		rooms:    make(map[domain.RoomID]bool),
		cancel:   cancel,
		joinedAt: time.Now().UTC(),
	}
	r.conns[c.ID()] = entry
	set, ok := r.byIdentity[identity.ID]
	if !ok {
		set = make(map[string]*connEntry)
		r.byIdentity[identity.ID] = set
	}
	cameOnline = len(set) == 0
	set[c.ID()] = entry
	log.Info().Str("module", "app.registry").
		Str("identity", string(identity.ID)).
		Str("conn", c.ID()).
		Bool("came_online", cameOnline).
		Msg("registered connection")
	return cameOnline
}

// Unregister removes the connection and reports whether the identity's
// set became empty — the moment "offline" fires, exactly once.
func (r *Registry) Unregister(connID string) (identity domain.Identity, wentOffline bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.conns[connID]
	if !found {
		return domain.Identity{}, false, false
	}
	delete(r.conns, connID)
	if entry.cancel != nil {
		entry.cancel()
	}
	set := r.byIdentity[entry.identity.ID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byIdentity, entry.identity.ID)
		wentOffline = true
	}
	log.Info().Str("module", "app.registry").
		Str("identity", string(entry.identity.ID)).
		Str("conn", connID).
		Bool("went_offline", wentOffline).
		Msg("unregistered connection")
	return entry.identity, wentOffline, true
}

func (r *Registry) IsOnline(id domain.IdentityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[id]) > 0
}

// OnlineCount counts distinct online identities, not connections.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

func (r *Registry) IdentityOf(connID string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[connID]; ok {
		return e.identity, true
	}
	return domain.Identity{}, false
}

func (r *Registry) ConnsOf(id domain.IdentityID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byIdentity[id]
	out := make([]Conn, 0, len(set))
	for _, e := range set {
		out = append(out, e.conn)
	}
	return out
}

// BindRoom attaches the connection to a room's fanout scope.
func (r *Registry) BindRoom(connID string, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return false
	}
	e.rooms[roomID] = true
	return true
}

// UnbindRoom detaches without error even if never bound.
func (r *Registry) UnbindRoom(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[connID]; ok {
		delete(e.rooms, roomID)
	}
}

func (r *Registry) RoomConns(roomID domain.RoomID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, e := range r.conns {
		if e.rooms[roomID] {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *Registry) AllConns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.conn)
	}
	return out
}
