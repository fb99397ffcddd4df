package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

// targetRepo is the concrete implementation of TargetRepository
type targetRepo struct {
	db *database.DB
}

// NewTargetRepo creates a new target repository
func NewTargetRepo(db *database.DB) TargetRepository {
	return &targetRepo{db: db}
}

// Upsert registers a target or refreshes its title, URL, flag and date.
// CreatedAt is only written on first insert.
func (r *targetRepo) Upsert(ctx context.Context, target *models.Target) error {
	query := r.db.Rebind(`
		INSERT INTO targets (content_type, object_id, title, url, enable_comments, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_type, object_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			enable_comments = excluded.enable_comments,
			published_at = excluded.published_at
		RETURNING created_at
	`)

	return r.db.QueryRowContext(ctx, query,
		target.ContentType, target.ObjectID, target.Title, target.URL,
		target.EnableComments, target.PublishedAt.UTC(), target.CreatedAt.UTC(),
	).Scan(&target.CreatedAt)
}

// GetByRef retrieves a target by content type and object ID
func (r *targetRepo) GetByRef(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	query := r.db.Rebind(`
		SELECT content_type, object_id, title, url, enable_comments, published_at, created_at
		FROM targets WHERE content_type = ? AND object_id = ?
	`)

	var t models.Target
	err := r.db.QueryRowContext(ctx, query, ref.ContentType, ref.ObjectID).Scan(
		&t.ContentType, &t.ObjectID, &t.Title, &t.URL, &t.EnableComments, &t.PublishedAt, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Count returns the number of registered targets
func (r *targetRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM targets").Scan(&count)
	return count, err
}
