package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/coursehub/liveclass/internal/app"
	"github.com/coursehub/liveclass/internal/auth"
	"github.com/coursehub/liveclass/internal/domain"
)

// roomsAPI is the REST surface for room administration: creating course
// rooms, enrolling participants and archiving. Client traffic goes over
// the websocket; these endpoints are called by the platform backend.
type roomsAPI struct {
	membership *app.Membership
	verifier   auth.Verifier
}

const identityKey = "identity"

func (a *roomsAPI) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	identity, err := a.verifier.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func identityFrom(c *gin.Context) domain.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(domain.Identity)
	return identity
}

func (a *roomsAPI) requireRole(c *gin.Context, roles ...domain.IdentityRole) (domain.Identity, bool) {
	identity := identityFrom(c)
	for _, r := range roles {
		if identity.Role == r {
			return identity, true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return identity, false
}

func (a *roomsAPI) createCourseRoom(c *gin.Context) {
	identity, ok := a.requireRole(c, domain.RoleAdmin, domain.RoleModerator)
	if !ok {
		return
	}
	var req struct {
		CourseID string               `json:"course_id"`
		Name     string               `json:"name"`
		Posting  domain.PostingPolicy `json:"posting"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		return
	}
	room, err := a.membership.CreateCourseRoom(c.Request.Context(), req.CourseID, req.Name, req.Posting)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("module", "http.rooms").
		Str("room", string(room.ID)).
		Str("course", req.CourseID).
		Str("by", string(identity.ID)).
		Msg("course room created")
	c.JSON(http.StatusCreated, room)
}

func (a *roomsAPI) addParticipant(c *gin.Context) {
	if _, ok := a.requireRole(c, domain.RoleAdmin, domain.RoleModerator); !ok {
		return
	}
	var req struct {
		IdentityID domain.IdentityID   `json:"identity_id"`
		Role       domain.IdentityRole `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IdentityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	if err := a.membership.AddParticipant(c.Request.Context(), roomID, req.IdentityID, req.Role); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "identity_id": req.IdentityID})
}

func (a *roomsAPI) archiveRoom(c *gin.Context) {
	if _, ok := a.requireRole(c, domain.RoleAdmin); !ok {
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	if err := a.membership.Archive(c.Request.Context(), roomID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "archived": true})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
