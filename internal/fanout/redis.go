package fanout

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/domain"
)

const channel = "liveclass:fanout"

type scope string

const (
	scopeRoom     scope = "room"
	scopeIdentity scope = "identity"
	scopeAll      scope = "all"
)

type envelope struct {
	Origin  string          `json:"origin"`
	Scope   scope           `json:"scope"`
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge wraps Local with a redis pub/sub channel so fanout reaches
// connections hosted on other instances. Each instance delivers only to
// its own connections; room state is never re-derived from the bus.
type Bridge struct {
	local  *Local
	rdb    *redis.Client
	origin string
}

func NewBridge(local *Local, rdb *redis.Client) *Bridge {
	return &Bridge{
		local:  local,
		rdb:    rdb,
		origin: uuid.NewString(),
	}
}

// Run subscribes and replays remote deliveries locally until ctx ends.
// It should run in its own goroutine.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	log.Info().Str("module", "fanout.redis").Str("origin", b.origin).Msg("bridge subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("module", "fanout.redis").Msg("bad envelope")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			switch env.Scope {
			case scopeRoom:
				b.local.ToRoom(domain.RoomID(env.Key), env.Payload)
			case scopeIdentity:
				b.local.ToIdentity(domain.IdentityID(env.Key), env.Payload)
			case scopeAll:
				b.local.All(env.Payload)
			}
		}
	}
}

func (b *Bridge) ToRoom(roomID domain.RoomID, v any) {
	b.local.ToRoom(roomID, v)
	b.publish(scopeRoom, string(roomID), v)
}

func (b *Bridge) ToIdentity(id domain.IdentityID, v any) {
	b.local.ToIdentity(id, v)
	b.publish(scopeIdentity, string(id), v)
}

func (b *Bridge) All(v any) {
	b.local.All(v)
	b.publish(scopeAll, "", v)
}

func (b *Bridge) publish(s scope, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "fanout.redis").Msg("marshal payload")
		return
	}
	env, err := json.Marshal(envelope{
		Origin:  b.origin,
		Scope:   s,
		Key:     key,
		Payload: payload,
	})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(context.Background(), channel, env).Err(); err != nil {
		log.Warn().Err(err).Str("module", "fanout.redis").Msg("publish")
	}
}
