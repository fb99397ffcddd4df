package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/models"
)

const commentColumns = `id, kind, content_type, object_id, parent_id, user_id, user_name,
	name, email, website, body, markup, submitted_at, modified_at, approved_at,
	is_public, is_approved, ip_address`

// visibleClause matches comments shown in public listings
const visibleClause = `(is_public = ? OR is_approved = ?)`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

// Create inserts a new comment and sets its ID
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.QueryRowContext(ctx, r.db.Rebind(insertComment), insertArgs(comment)...).Scan(&comment.ID)
}

const insertComment = `
	INSERT INTO comments (kind, content_type, object_id, parent_id, user_id, user_name,
		name, email, website, body, markup, submitted_at, modified_at, approved_at,
		is_public, is_approved, ip_address)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`

func insertArgs(comment *models.Comment) []any {
	return []any{
		string(comment.Kind), comment.Target.ContentType, comment.Target.ObjectID,
		nullInt64(comment.ParentID), comment.Author.UserID, comment.Author.UserName,
		comment.Author.Name, comment.Author.Email, comment.Author.Website,
		comment.Body, int(comment.Markup), comment.SubmittedAt.UTC(), comment.ModifiedAt.UTC(),
		nullTime(comment.ApprovedAt), comment.IsPublic, comment.IsApproved, comment.IPAddress,
	}
}

// BatchCreate inserts comments in order inside one transaction and sets their
// IDs. Either every comment is stored or none is.
func (r *commentRepo) BatchCreate(ctx context.Context, comments []*models.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(insertComment))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	ids := make([]int64, len(comments))
	for i, comment := range comments {
		if err := stmt.QueryRowContext(ctx, insertArgs(comment)...).Scan(&ids[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	for i, comment := range comments {
		comment.ID = ids[i]
	}
	return len(comments), nil
}

// GetByID retrieves a comment by kind and ID
func (r *commentRepo) GetByID(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error) {
	query := r.db.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ? AND kind = ?`)

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListForTarget returns a target's comments of one kind in insertion order
func (r *commentRepo) ListForTarget(ctx context.Context, kind models.Kind, ref models.TargetRef, scope Scope) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments
		WHERE content_type = ? AND object_id = ? AND kind = ?`
	args := []any{ref.ContentType, ref.ObjectID, string(kind)}
	if scope == ScopePublic {
		query += ` AND ` + visibleClause
		args = append(args, true, true)
	}
	query += ` ORDER BY id`

	return r.list(ctx, query, args...)
}

// Update saves an edited body and markup
func (r *commentRepo) Update(ctx context.Context, comment *models.Comment) error {
	query := r.db.Rebind(`UPDATE comments SET body = ?, markup = ?, modified_at = ? WHERE id = ? AND kind = ?`)
	_, err := r.db.ExecContext(ctx, query,
		comment.Body, int(comment.Markup), comment.ModifiedAt.UTC(), comment.ID, string(comment.Kind),
	)
	return err
}

// Approve marks a comment approved, which makes it visible
func (r *commentRepo) Approve(ctx context.Context, kind models.Kind, id int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE comments SET is_approved = ?, approved_at = ? WHERE id = ? AND kind = ?`)
	_, err := r.db.ExecContext(ctx, query, true, at.UTC(), id, string(kind))
	return err
}

// Delete removes the given comments in one transaction, last first, so
// replies listed after their parent go before it
func (r *commentRepo) Delete(ctx context.Context, kind models.Kind, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`DELETE FROM comments WHERE kind = ? AND id = ?`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	deleted := 0
	for i := len(ids) - 1; i >= 0; i-- {
		res, err := stmt.ExecContext(ctx, string(kind), ids[i])
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// Count returns the number of a target's comments of one kind
func (r *commentRepo) Count(ctx context.Context, kind models.Kind, ref models.TargetRef, scope Scope) (int, error) {
	query := `SELECT COUNT(*) FROM comments WHERE content_type = ? AND object_id = ? AND kind = ?`
	args := []any{ref.ContentType, ref.ObjectID, string(kind)}
	if scope == ScopePublic {
		query += ` AND ` + visibleClause
		args = append(args, true, true)
	}

	var count int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&count)
	return count, err
}

// CountAll returns the total number of comments
func (r *commentRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count)
	return count, err
}

// ListByUser returns a registered user's visible comments, newest first
func (r *commentRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments
		WHERE user_id = ? AND kind = ? AND ` + visibleClause + `
		ORDER BY submitted_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, userID, string(models.KindComment), true, true, limit)
}

// Latest returns the newest visible comments of one kind across all targets
func (r *commentRepo) Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments
		WHERE kind = ? AND ` + visibleClause + `
		ORDER BY submitted_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, string(kind), true, true, limit)
}

// StreamAll streams all comments for export
func (r *commentRepo) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	query := `SELECT ` + commentColumns + ` FROM comments ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return err
		}
		if err := callback(comment); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *commentRepo) list(ctx context.Context, query string, args ...any) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(s scanner) (*models.Comment, error) {
	var (
		c          models.Comment
		kind       string
		parentID   sql.NullInt64
		approvedAt sql.NullTime
	)
	err := s.Scan(
		&c.ID, &kind, &c.Target.ContentType, &c.Target.ObjectID, &parentID,
		&c.Author.UserID, &c.Author.UserName, &c.Author.Name, &c.Author.Email, &c.Author.Website,
		&c.Body, &c.Markup, &c.SubmittedAt, &c.ModifiedAt, &approvedAt,
		&c.IsPublic, &c.IsApproved, &c.IPAddress,
	)
	if err != nil {
		return nil, err
	}

	c.Kind = models.Kind(kind)
	if parentID.Valid {
		id := parentID.Int64
		c.ParentID = &id
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		c.ApprovedAt = &t
	}
	return &c, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
