package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/coursehub/liveclass/internal/adapters/http"
	"github.com/coursehub/liveclass/internal/adapters/ws"
	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/auth"
	"github.com/coursehub/liveclass/internal/config"
	"github.com/coursehub/liveclass/internal/fanout"
	"github.com/coursehub/liveclass/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	reg := app.NewRegistry()
	local := fanout.NewLocal(reg)

	var fan app.Fanout = local
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis unreachable")
		}
		bridge := fanout.NewBridge(local, rdb)
		go bridge.Run(ctx)
		fan = bridge
	}

	rooms := store.NewRoomStore(db)
	messages := store.NewMessageStore(db)
	calls := store.NewCallStore(db)

	membership := app.NewMembership(rooms, reg, fan)
	engine := app.NewMessages(rooms, messages, membership, fan)
	relay := app.NewCalls(calls, rooms, reg, fan, cfg.RingTimeout)

	ctl := &ws.Controller{
		Reg:        reg,
		Membership: membership,
		Messages:   engine,
		Calls:      relay,
		Fanout:     fan,
		Verifier:   auth.NewVerifier(cfg.Secret),
		Cfg:        cfg,
	}

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("liveclass server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
