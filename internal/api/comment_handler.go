package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	services *service.Services
	timeout  time.Duration
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, timeout time.Duration, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		timeout:  timeout,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// Tree handles GET /v1/targets/:content_type/:object_id/:kind?root=&all=&format=
func (h *CommentHandler) Tree(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	opts := service.TreeOptions{Unmoderated: flagParam(c, "all")}
	if opts.Unmoderated && !isStaff(c) {
		respondError(c, http.StatusForbidden, "unmoderated comments are staff only")
		return
	}
	if raw := c.Query("root"); raw != "" {
		root, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "root must be an integer")
			return
		}
		opts.RootID = &root
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	ref := targetParam(c)
	nodes, err := h.services.Comment.Tree(ctx, kind, ref, opts)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	if negotiate(c, formatJSON, formatXML, formatHTML) == formatHTML {
		target, err := h.services.Target.Get(ctx, ref)
		if err != nil {
			handleError(c, h.log, err)
			return
		}
		c.HTML(http.StatusOK, "tree.html", gin.H{"Target": target, "Kind": kind, "Nodes": nodes})
		return
	}

	if nodes == nil {
		nodes = []models.Node{}
	}
	respond(c, http.StatusOK, treeResponse{Target: ref, Kind: kind, Count: len(nodes), Nodes: nodes})
}

// Count handles GET /v1/targets/:content_type/:object_id/:kind/count?all=
func (h *CommentHandler) Count(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	all := flagParam(c, "all")
	if all && !isStaff(c) {
		respondError(c, http.StatusForbidden, "unmoderated comments are staff only")
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	ref := targetParam(c)
	count, err := h.services.Comment.Count(ctx, kind, ref, all)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, countResponse{Target: ref, Kind: kind, Count: count})
}

// Create handles POST /v1/targets/:content_type/:object_id/:kind
// Form fields: comment, markup, parent, name, email, website
func (h *CommentHandler) Create(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	var form models.CommentForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	res, err := h.services.Comment.Create(ctx, service.CreateInput{
		Kind:      kind,
		Target:    targetParam(c),
		Form:      &form,
		User:      currentUser(c),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, createResponse{CreateResult: res})
}

// Get handles GET /v1/comments/:kind/:id
func (h *CommentHandler) Get(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	comment, err := h.services.Comment.Get(ctx, kind, id, currentUser(c))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, comment)
}

// Edit handles POST /v1/comments/:kind/:id/edit
// Form fields: comment, markup, preview
func (h *CommentHandler) Edit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var form models.EditForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	res, err := h.services.Comment.Edit(ctx, service.EditInput{
		Kind: kind,
		ID:   id,
		Form: &form,
		User: currentUser(c),
	})
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, editResponse{EditResult: res})
}

// Delete handles POST /v1/comments/:kind/:id/delete
func (h *CommentHandler) Delete(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	deleted, err := h.services.Comment.Delete(ctx, kind, id, currentUser(c))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, deleteResponse{ID: id, Deleted: deleted})
}

// Approve handles POST /v1/comments/:kind/:id/approve
func (h *CommentHandler) Approve(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	comment, err := h.services.Comment.Approve(ctx, kind, id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, comment)
}

// ForUser handles GET /v1/users/:user_id/comments?limit=
func (h *CommentHandler) ForUser(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	comments, err := h.services.Comment.ForUser(ctx, c.Param("user_id"), limit)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respondList(c, comments)
}

// Latest handles GET /v1/latest/:kind?limit=
func (h *CommentHandler) Latest(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, h.timeout)
	defer cancel()

	comments, err := h.services.Comment.Latest(ctx, kind, limit)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	respondList(c, comments)
}

func respondList(c *gin.Context, comments []*models.Comment) {
	if comments == nil {
		comments = []*models.Comment{}
	}
	respond(c, http.StatusOK, listResponse{Count: len(comments), Comments: comments})
}
