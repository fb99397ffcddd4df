package api

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
	"github.com/threaded-comments-api/internal/validation"
)

// Response formats
const (
	formatJSON = "json"
	formatXML  = "xml"
	formatHTML = "html"
)

type errorResponse struct {
	XMLName xml.Name          `json:"-" xml:"error"`
	Error   string            `json:"error" xml:"message"`
	Fields  validation.Errors `json:"fields,omitempty" xml:"field,omitempty"`
}

type treeResponse struct {
	XMLName xml.Name         `json:"-" xml:"comments"`
	Target  models.TargetRef `json:"target" xml:"target"`
	Kind    models.Kind      `json:"kind" xml:"kind,attr"`
	Count   int              `json:"count" xml:"count,attr"`
	Nodes   []models.Node    `json:"comments" xml:"node"`
}

type countResponse struct {
	XMLName xml.Name         `json:"-" xml:"count"`
	Target  models.TargetRef `json:"target" xml:"target"`
	Kind    models.Kind      `json:"kind" xml:"kind,attr"`
	Count   int              `json:"count" xml:"value"`
}

type listResponse struct {
	XMLName  xml.Name          `json:"-" xml:"comments"`
	Count    int               `json:"count" xml:"count,attr"`
	Comments []*models.Comment `json:"comments" xml:"comment"`
}

type createResponse struct {
	XMLName xml.Name `json:"-" xml:"created"`
	*service.CreateResult
}

type editResponse struct {
	XMLName xml.Name `json:"-" xml:"edited"`
	*service.EditResult
}

type deleteResponse struct {
	XMLName xml.Name `json:"-" xml:"deleted"`
	ID      int64    `json:"id" xml:"id,attr"`
	Deleted int      `json:"deleted" xml:"count"`
}

type moderatorsResponse struct {
	XMLName    xml.Name                 `json:"-" xml:"moderators"`
	Moderators []service.ModeratorEntry `json:"moderators" xml:"moderator"`
}

// negotiate picks the response format from the format query parameter, then
// the Accept header. JSON is the default.
func negotiate(c *gin.Context, offered ...string) string {
	if f := c.Query("format"); f != "" {
		for _, o := range offered {
			if f == o {
				return f
			}
		}
		return formatJSON
	}
	switch c.NegotiateFormat(gin.MIMEJSON, gin.MIMEXML, gin.MIMEXML2) {
	case gin.MIMEXML, gin.MIMEXML2:
		for _, o := range offered {
			if o == formatXML {
				return formatXML
			}
		}
	}
	return formatJSON
}

// respond writes obj as JSON or XML
func respond(c *gin.Context, status int, obj any) {
	if negotiate(c, formatJSON, formatXML) == formatXML {
		c.XML(status, obj)
		return
	}
	c.JSON(status, obj)
}

func respondError(c *gin.Context, status int, msg string) {
	respond(c, status, errorResponse{Error: msg})
}

// handleError maps service errors to status codes
func handleError(c *gin.Context, log zerolog.Logger, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		respond(c, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// kindParam validates the :kind path parameter
func kindParam(c *gin.Context) (models.Kind, bool) {
	kind := models.Kind(c.Param("kind"))
	if !models.ValidKinds[kind] {
		respondError(c, http.StatusNotFound, "unknown comment kind: "+string(kind))
		return "", false
	}
	return kind, true
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func targetParam(c *gin.Context) models.TargetRef {
	return models.TargetRef{ContentType: c.Param("content_type"), ObjectID: c.Param("object_id")}
}

// limitParam parses an optional limit query parameter; zero means default
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func flagParam(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

func currentUser(c *gin.Context) *auth.User {
	user, _ := auth.UserFromContext(c.Request.Context())
	return user
}

func isStaff(c *gin.Context) bool {
	user := currentUser(c)
	return user != nil && user.Staff
}

// requireStaff rejects anonymous and non-staff callers
func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondError(c, http.StatusUnauthorized, service.ErrUnauthenticated.Error())
			c.Abort()
			return
		}
		if !user.Staff {
			respondError(c, http.StatusForbidden, "staff only")
			c.Abort()
			return
		}
		c.Next()
	}
}
