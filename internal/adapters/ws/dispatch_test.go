package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/config"
	"github.com/coursehub/liveclass/internal/domain"
	"github.com/coursehub/liveclass/internal/store"
)

// emptyRoomStore answers every lookup with not-found; enough to drive
// the dispatch and error-event paths without a database.
type emptyRoomStore struct{}

func (emptyRoomStore) Create(context.Context, *domain.Room) error { return nil }
func (emptyRoomStore) Get(context.Context, domain.RoomID) (*domain.Room, error) {
	return nil, domain.ErrNotFound
}
func (emptyRoomStore) FindDirect(context.Context, string) (*domain.Room, error) {
	return nil, domain.ErrNotFound
}
func (emptyRoomStore) AddParticipant(context.Context, *domain.Participant) error { return nil }
func (emptyRoomStore) TouchLastSeen(context.Context, domain.RoomID, domain.IdentityID, time.Time) error {
	return nil
}
func (emptyRoomStore) Archive(context.Context, domain.RoomID) error { return nil }

var _ store.RoomStore = emptyRoomStore{}

type nullFanout struct{}

func (nullFanout) ToRoom(domain.RoomID, any)         {}
func (nullFanout) ToIdentity(domain.IdentityID, any) {}
func (nullFanout) All(any)                           {}

func newTestController() *Controller {
	reg := app.NewRegistry()
	return &Controller{
		Reg:        reg,
		Membership: app.NewMembership(emptyRoomStore{}, reg, nullFanout{}),
		Fanout:     nullFanout{},
		Cfg:        &config.Config{HistoryLimit: 50},
	}
}

func newTestConn() *wsConn {
	return &wsConn{id: "test-conn", send: make(chan app.Frame, 8)}
}

// nextFrame drains one queued outbound frame into v.
func nextFrame(t *testing.T, c *wsConn, v any) {
	t.Helper()
	select {
	case data := <-c.send:
		require.NoError(t, json.Unmarshal(data, v))
	default:
		t.Fatal("no frame queued")
	}
}

func TestDispatchMalformedFrame(t *testing.T) {
	ctl := newTestController()
	c := newTestConn()

	ctl.dispatch(context.Background(), domain.Identity{ID: "u1"}, c, []byte("{not json"))

	var ev domain.ErrorEvent
	nextFrame(t, c, &ev)
	assert.Equal(t, domain.EvError, ev.Type)
	assert.Equal(t, "validation_failed", ev.Code)
}

func TestDispatchUnknownEvent(t *testing.T) {
	ctl := newTestController()
	c := newTestConn()

	ctl.dispatch(context.Background(), domain.Identity{ID: "u1"}, c, []byte(`{"type":"launch_rocket"}`))

	var ev domain.ErrorEvent
	nextFrame(t, c, &ev)
	assert.Equal(t, "validation_failed", ev.Code)
}

func TestDispatchPing(t *testing.T) {
	ctl := newTestController()
	c := newTestConn()

	ctl.dispatch(context.Background(), domain.Identity{ID: "u1"}, c, []byte(`{"type":"ping"}`))

	var ev struct {
		Type string `json:"type"`
	}
	nextFrame(t, c, &ev)
	assert.Equal(t, "pong", ev.Type)
}

func TestDispatchJoinUnknownRoom(t *testing.T) {
	ctl := newTestController()
	c := newTestConn()

	ctl.dispatch(context.Background(), domain.Identity{ID: "u1"}, c, []byte(`{"type":"join_room","room_id":"ghost"}`))

	var ev domain.ErrorEvent
	nextFrame(t, c, &ev)
	assert.Equal(t, "not_found", ev.Code)
}

func TestDispatchJoinMissingRoomID(t *testing.T) {
	ctl := newTestController()
	c := newTestConn()

	ctl.dispatch(context.Background(), domain.Identity{ID: "u1"}, c, []byte(`{"type":"join_room"}`))

	var ev domain.ErrorEvent
	nextFrame(t, c, &ev)
	assert.Equal(t, "validation_failed", ev.Code)
}

func TestSendErrorCodeMapping(t *testing.T) {
	ctl := newTestController()

	cases := []struct {
		err  error
		code string
	}{
		{domain.ErrNotFound, "not_found"},
		{domain.ErrAccessDenied, "access_denied"},
		{domain.ErrForbidden, "forbidden"},
		{domain.ErrValidation, "validation_failed"},
		{domain.ErrAuthFailed, "authentication_failed"},
		{domain.ErrOperationFailed, "operation_failed"},
		{fmt.Errorf("%w: row lock timeout", domain.ErrOperationFailed), "operation_failed"},
		{fmt.Errorf("%w: no such room", domain.ErrNotFound), "not_found"},
	}
	for _, tc := range cases {
		c := newTestConn()
		ctl.sendError(c, tc.err)

		var ev domain.ErrorEvent
		nextFrame(t, c, &ev)
		assert.Equal(t, tc.code, ev.Code, "for error %v", tc.err)
		assert.NotEmpty(t, ev.Reason)
	}
}

func TestTrySendBackpressure(t *testing.T) {
	c := &wsConn{id: "c1", send: make(chan app.Frame, 1)}

	require.NoError(t, c.TrySend(app.Frame(`{}`)))
	assert.ErrorIs(t, c.TrySend(app.Frame(`{}`)), ErrBackpressure)
}

func TestTrySendAfterCloseFails(t *testing.T) {
	c := &wsConn{id: "c1", send: make(chan app.Frame, 1)}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	assert.Error(t, c.TrySend(app.Frame(`{}`)))
}

func TestBearerFrom(t *testing.T) {
	assert.Equal(t, "tok123", bearerFrom("Bearer tok123"))
	assert.Empty(t, bearerFrom("bearer tok123"))
	assert.Empty(t, bearerFrom("Basic dXNlcg=="))
	assert.Empty(t, bearerFrom(""))
	assert.Empty(t, bearerFrom("Bearer "))
}
