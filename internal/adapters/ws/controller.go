// Package ws is the websocket boundary: it authenticates connections,
// decodes the closed set of inbound events, calls the engines and
// writes outbound frames. One goroutine pair per connection.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/auth"
	"github.com/coursehub/liveclass/internal/config"
	"github.com/coursehub/liveclass/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Reg        *app.Registry
	Membership *app.Membership
	Messages   *app.Messages
	Calls      *app.Calls
	Fanout     app.Fanout
	Verifier   auth.Verifier
	Cfg        *config.Config
}

// wsConn wraps one gorilla connection behind the app.Conn contract.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan app.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) TrySend(f app.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the bearer token and, on success, upgrades and
// registers the connection. A connection that never authenticates is
// refused before any registry entry exists — the one fatal error.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerFrom(c.GetHeader("Authorization"))
	}
	identity, err := ctl.Verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("connection refused")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}

	conn := &wsConn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan app.Frame, 64),
	}
	ctx, cancel := context.WithCancel(ctx)

	cameOnline := ctl.Reg.Register(identity, conn, cancel)
	if cameOnline {
		ctl.Fanout.All(domain.PresenceChanged{
			Type:     domain.EvPresenceChanged,
			Identity: identity.ID,
			Name:     identity.Name,
			Online:   true,
		})
	}
	ctl.Fanout.All(domain.OnlineCount{Type: domain.EvOnlineCount, N: ctl.Reg.OnlineCount()})

	log.Info().Str("module", "ws").
		Str("identity", string(identity.ID)).
		Str("conn", conn.id).
		Msg("connection established")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, identity, conn)
}

// teardown runs once per connection, after the read pump exits.
func (ctl *Controller) teardown(ctx context.Context, conn *wsConn) {
	conn.Close()
	identity, wentOffline, ok := ctl.Reg.Unregister(conn.id)
	if !ok {
		return
	}
	if wentOffline {
		// Presence fires exactly once, on the last device leaving.
		ctl.Fanout.All(domain.PresenceChanged{
			Type:     domain.EvPresenceChanged,
			Identity: identity.ID,
			Name:     identity.Name,
			Online:   false,
		})
		ctl.Calls.HandleOffline(context.WithoutCancel(ctx), identity.ID)
	}
	ctl.Fanout.All(domain.OnlineCount{Type: domain.EvOnlineCount, N: ctl.Reg.OnlineCount()})
}

func bearerFrom(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
