package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/liveclass/internal/adapters/ws"
	"github.com/coursehub/liveclass/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.StaticPath != "" {
		r.Static("/app", cfg.StaticPath)
	}

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	rooms := &roomsAPI{membership: ctl.Membership, verifier: ctl.Verifier}
	admin := api.Group("/rooms", rooms.authenticate)
	admin.POST("/course", rooms.createCourseRoom)
	admin.POST("/:id/participants", rooms.addParticipant)
	admin.POST("/:id/archive", rooms.archiveRoom)

	return r
}
