package repository

import (
	"context"
	"time"

	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

// Scope selects which comments a query returns
type Scope int

const (
	// ScopePublic returns only comments that are public or approved
	ScopePublic Scope = iota
	// ScopeAll returns every comment, including moderated ones
	ScopeAll
)

// CommentRepository defines the interface for comment data operations.
// Lookups return nil, nil when nothing matches.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	BatchCreate(ctx context.Context, comments []*models.Comment) (int, error)
	GetByID(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error)
	ListForTarget(ctx context.Context, kind models.Kind, ref models.TargetRef, scope Scope) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Approve(ctx context.Context, kind models.Kind, id int64, at time.Time) error
	Delete(ctx context.Context, kind models.Kind, ids []int64) (int, error)
	Count(ctx context.Context, kind models.Kind, ref models.TargetRef, scope Scope) (int, error)
	CountAll(ctx context.Context) (int, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error)
	Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error)
	StreamAll(ctx context.Context, callback func(*models.Comment) error) error
}

// TargetRepository defines the interface for commentable object operations
type TargetRepository interface {
	Upsert(ctx context.Context, target *models.Target) error
	GetByRef(ctx context.Context, ref models.TargetRef) (*models.Target, error)
	Count(ctx context.Context) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Comment CommentRepository
	Target  TargetRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Comment: NewCommentRepo(db),
		Target:  NewTargetRepo(db),
	}
}
