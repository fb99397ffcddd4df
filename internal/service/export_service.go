package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamComments streams every comment, hidden ones included, in the
// specified format
func (s *exportService) StreamComments(ctx context.Context, w http.ResponseWriter, format string) (err error) {
	ctx, span := startSpan(ctx, "ExportService.StreamComments")
	defer func() { endSpan(span, err) }()

	s.log.Info().Str("format", format).Msg("Starting comments export")

	switch format {
	case "ndjson":
		return s.streamCommentsNDJSON(ctx, w)
	case "json":
		return s.streamCommentsJSON(ctx, w)
	case "csv":
		return s.streamCommentsCSV(ctx, w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func (s *exportService) streamCommentsNDJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=comments.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Comment.StreamAll(ctx, func(comment *models.Comment) error {
		data, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		w.Write(data)
		w.Write([]byte("\n"))
		count++

		// Flush every 100 records for streaming
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Comments export completed")
	return err
}

func (s *exportService) streamCommentsJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=comments.json")

	w.Write([]byte("["))
	first := true

	err := s.repos.Comment.StreamAll(ctx, func(comment *models.Comment) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		w.Write(data)
		return nil
	})

	w.Write([]byte("]"))
	return err
}

func (s *exportService) streamCommentsCSV(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=comments.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{
		"id", "kind", "content_type", "object_id", "parent_id", "user_id", "user_name",
		"name", "email", "website", "comment", "markup", "date_submitted", "date_modified",
		"is_public", "is_approved",
	})

	return s.repos.Comment.StreamAll(ctx, func(c *models.Comment) error {
		parent := ""
		if c.ParentID != nil {
			parent = strconv.FormatInt(*c.ParentID, 10)
		}
		return writer.Write([]string{
			strconv.FormatInt(c.ID, 10),
			string(c.Kind),
			c.Target.ContentType,
			c.Target.ObjectID,
			parent,
			c.Author.UserID,
			c.Author.UserName,
			c.Author.Name,
			c.Author.Email,
			c.Author.Website,
			c.Body,
			c.Markup.String(),
			c.SubmittedAt.UTC().Format(time.RFC3339),
			c.ModifiedAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(c.IsPublic),
			strconv.FormatBool(c.IsApproved),
		})
	})
}

// GetCount returns count for a resource
func (s *exportService) GetCount(ctx context.Context, resource string) (int, error) {
	switch resource {
	case "comments":
		return s.repos.Comment.CountAll(ctx)
	case "targets":
		return s.repos.Target.Count(ctx)
	default:
		return 0, fmt.Errorf("unknown resource: %s", resource)
	}
}
