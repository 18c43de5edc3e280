package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/liveclass/internal/domain"
)

type fakeConn struct {
	id     string
	frames []Frame
	closed bool
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) TrySend(f Frame) error {
	c.frames = append(c.frames, f)
	return nil
}
func (c *fakeConn) Close() { c.closed = true }

func TestRegistryMultiDevicePresence(t *testing.T) {
	reg := NewRegistry()
	alice := domain.Identity{ID: "alice", Name: "Alice"}

	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	assert.True(t, reg.Register(alice, c1, nil), "first device brings identity online")
	assert.False(t, reg.Register(alice, c2, nil), "second device does not")
	assert.True(t, reg.IsOnline("alice"))
	assert.Equal(t, 1, reg.OnlineCount())

	_, wentOffline, ok := reg.Unregister("c1")
	require.True(t, ok)
	assert.False(t, wentOffline, "one device remains")
	assert.True(t, reg.IsOnline("alice"))

	id, wentOffline, ok := reg.Unregister("c2")
	require.True(t, ok)
	assert.True(t, wentOffline, "offline fires exactly once, on the last device")
	assert.Equal(t, alice.ID, id.ID)
	assert.False(t, reg.IsOnline("alice"))
	assert.Equal(t, 0, reg.OnlineCount())

	_, _, ok = reg.Unregister("c2")
	assert.False(t, ok, "double unregister is harmless")
}

func TestRegistryRoomBinding(t *testing.T) {
	reg := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	reg.Register(domain.Identity{ID: "alice"}, c1, nil)
	reg.Register(domain.Identity{ID: "bob"}, c2, nil)

	assert.True(t, reg.BindRoom("c1", "r1"))
	assert.True(t, reg.BindRoom("c2", "r1"))
	assert.Len(t, reg.RoomConns("r1"), 2)

	reg.UnbindRoom("c2", "r1")
	conns := reg.RoomConns("r1")
	require.Len(t, conns, 1)
	assert.Equal(t, "c1", conns[0].ID())

	// Unbinding a never-bound room is idempotent.
	reg.UnbindRoom("c2", "r9")

	assert.False(t, reg.BindRoom("ghost", "r1"))
	assert.Len(t, reg.AllConns(), 2)
}

func TestRegistryConnsOf(t *testing.T) {
	reg := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}
	reg.Register(domain.Identity{ID: "alice"}, c1, nil)
	reg.Register(domain.Identity{ID: "alice"}, c2, nil)

	assert.Len(t, reg.ConnsOf("alice"), 2)
	assert.Empty(t, reg.ConnsOf("bob"))

	identity, ok := reg.IdentityOf("c1")
	require.True(t, ok)
	assert.Equal(t, domain.IdentityID("alice"), identity.ID)
}
