package service

import (
	"context"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/validation"
)

// renderCacheTTL is how long rendered comment bodies stay cached
const renderCacheTTL = 10 * time.Minute

// CommentService defines the interface for comment operations
type CommentService interface {
	Create(ctx context.Context, in CreateInput) (*CreateResult, error)
	Get(ctx context.Context, kind models.Kind, id int64, viewer *auth.User) (*models.Comment, error)
	Tree(ctx context.Context, kind models.Kind, ref models.TargetRef, opts TreeOptions) ([]models.Node, error)
	Edit(ctx context.Context, in EditInput) (*EditResult, error)
	Delete(ctx context.Context, kind models.Kind, id int64, user *auth.User) (int, error)
	Approve(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error)
	Count(ctx context.Context, kind models.Kind, ref models.TargetRef, unmoderated bool) (int, error)
	ForUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error)
	Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error)
	Render(c *models.Comment) template.HTML
}

// TargetService defines the interface for commentable object operations
type TargetService interface {
	Upsert(ctx context.Context, ref models.TargetRef, req *models.TargetRequest) (*models.Target, error)
	Get(ctx context.Context, ref models.TargetRef) (*models.Target, error)
}

// ModeratorService defines the interface for runtime moderation policy changes
type ModeratorService interface {
	List() []ModeratorEntry
	Put(contentType string, m *moderation.Moderator) (bool, error)
	Remove(contentType string) error
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamComments(ctx context.Context, w http.ResponseWriter, format string) error
	GetCount(ctx context.Context, resource string) (int, error)
}

// ImportService defines the interface for bulk comment imports
type ImportService interface {
	ImportComments(ctx context.Context, r io.Reader) (*models.ImportReport, error)
}

// Notifier queues notifications without waiting for delivery
type Notifier interface {
	Dispatch(msg notify.Message) bool
}

// Services holds all service interfaces
type Services struct {
	Comment   CommentService
	Target    TargetService
	Moderator ModeratorService
	Export    ExportService
	Import    ImportService
}

// NewServices creates all services. The registry is shared with the caller so
// policies loaded at startup and those changed at runtime are the same set.
func NewServices(repos *repository.Repositories, cfg *config.Config, registry *moderation.Registry, notifier Notifier, log zerolog.Logger) *Services {
	validator := validation.NewValidator()
	renderer := markup.NewRenderer(renderCacheTTL)

	return &Services{
		Comment:   newCommentService(repos, registry, notifier, validator, renderer, log),
		Target:    newTargetService(repos.Target, validator, log),
		Moderator: newModeratorService(registry, validator, log),
		Export:    newExportService(repos, log),
		Import:    newImportService(repos, validator, cfg.Import.BatchSize, log),
	}
}
