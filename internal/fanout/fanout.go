// Package fanout delivers events to live connections. The local
// implementation walks the session registry; the redis bridge extends a
// scope across instances by replaying the same delivery on each one.
package fanout

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/domain"
)

// Local fans out to connections hosted by this process. Sends are
// per-connection and non-blocking; a connection whose buffer is full
// gets closed rather than stalling the rest of the scope.
type Local struct {
	reg *app.Registry
}

func NewLocal(reg *app.Registry) *Local {
	return &Local{reg: reg}
}

func (l *Local) ToRoom(roomID domain.RoomID, v any) {
	l.send(l.reg.RoomConns(roomID), v)
}

func (l *Local) ToIdentity(id domain.IdentityID, v any) {
	l.send(l.reg.ConnsOf(id), v)
}

func (l *Local) All(v any) {
	l.send(l.reg.AllConns(), v)
}

func (l *Local) send(conns []app.Conn, v any) {
	if len(conns) == 0 {
		return
	}
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "fanout").Msg("marshal event")
		return
	}
	for _, c := range conns {
		if err := c.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "fanout").
				Str("conn", c.ID()).Msg("slow connection dropped")
			c.Close()
		}
	}
}
