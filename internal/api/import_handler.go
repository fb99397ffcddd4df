package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
)

// ImportHandler handles import endpoints
type ImportHandler struct {
	services      *service.Services
	maxUploadSize int64
	log           zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, maxUploadSize int64, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services:      services,
		maxUploadSize: maxUploadSize,
		log:           log.With().Str("handler", "import").Logger(),
	}
}

// ImportComments handles POST /v1/imports/comments?format=
// Accepts a multipart "file" upload or a raw NDJSON body. With format=csv the
// rejected lines are returned as CSV instead of the JSON report.
func (h *ImportHandler) ImportComments(c *gin.Context) {
	ctx := c.Request.Context()
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	var (
		body io.Reader = c.Request.Body
		name           = "body"
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				h.respondTooLarge(c)
				return
			}
			respondError(c, http.StatusBadRequest, "file upload is required")
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".ndjson" && ext != ".jsonl" && ext != ".json" {
			respondError(c, http.StatusBadRequest, "comments import requires an NDJSON file")
			return
		}
		body, name = file, header.Filename
	}

	report, err := h.services.Import.ImportComments(ctx, body)
	if err != nil {
		if tooLarge(err) {
			h.respondTooLarge(c)
			return
		}
		handleError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("source", name).
		Str("user", currentUser(c).ID).
		Int("imported", report.Imported).
		Int("failed", report.Failed).
		Msg("Comments imported")

	if c.Query("format") == "csv" {
		writeLineErrorsCSV(c, report.Errors)
		return
	}
	respond(c, http.StatusOK, report)
}

func (h *ImportHandler) respondTooLarge(c *gin.Context) {
	respondError(c, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("import too large, max size is %d MB", h.maxUploadSize/(1024*1024)))
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeLineErrorsCSV(c *gin.Context, lineErrors []models.LineError) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=import_errors.csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	writer.Write([]string{"line", "field", "message", "value"})
	for _, e := range lineErrors {
		value := ""
		if e.Value != nil {
			value = fmt.Sprintf("%v", e.Value)
		}
		writer.Write([]string{strconv.Itoa(e.Line), e.Field, e.Message, value})
	}
	writer.Flush()
}
