package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// TargetHandler handles commentable object endpoints
type TargetHandler struct {
	services *service.Services
	timeout  time.Duration
	log      zerolog.Logger
}

// NewTargetHandler creates a new TargetHandler
func NewTargetHandler(services *service.Services, timeout time.Duration, log zerolog.Logger) *TargetHandler {
	return &TargetHandler{
		services: services,
		timeout:  timeout,
		log:      log.With().Str("handler", "target").Logger(),
	}
}

// Upsert handles PUT /v1/targets/:content_type/:object_id
func (h *TargetHandler) Upsert(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	var req models.TargetRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := h.services.Target.Upsert(ctx, targetParam(c), &req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, target)
}

// Get handles GET /v1/targets/:content_type/:object_id
func (h *TargetHandler) Get(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	target, err := h.services.Target.Get(ctx, targetParam(c))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, target)
}
