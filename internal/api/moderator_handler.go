package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/service"
)

// ModeratorHandler handles moderation policy endpoints
type ModeratorHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewModeratorHandler creates a new ModeratorHandler
func NewModeratorHandler(services *service.Services, log zerolog.Logger) *ModeratorHandler {
	return &ModeratorHandler{
		services: services,
		log:      log.With().Str("handler", "moderator").Logger(),
	}
}

// List handles GET /v1/moderators
func (h *ModeratorHandler) List(c *gin.Context) {
	respond(c, http.StatusOK, moderatorsResponse{Moderators: h.services.Moderator.List()})
}

// Put handles PUT /v1/moderators/:content_type with a JSON policy body
func (h *ModeratorHandler) Put(c *gin.Context) {
	var m moderation.Moderator
	if err := c.ShouldBindJSON(&m); err != nil {
		respondError(c, http.StatusBadRequest, "invalid moderator: "+err.Error())
		return
	}

	created, err := h.services.Moderator.Put(c.Param("content_type"), &m)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, service.ModeratorEntry{ContentType: c.Param("content_type"), Policy: &m})
}

// Delete handles DELETE /v1/moderators/:content_type
func (h *ModeratorHandler) Delete(c *gin.Context) {
	if err := h.services.Moderator.Remove(c.Param("content_type")); err != nil {
		handleError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
