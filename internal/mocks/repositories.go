package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
)

// MockCommentRepository is an in-memory implementation of CommentRepository
type MockCommentRepository struct {
	mu          sync.Mutex
	Comments    map[int64]*models.Comment
	NextID      int64
	InsertError error
	QueryError  error
	DeleteCalls [][]int64
}

// Verify interface compliance
var _ repository.CommentRepository = (*MockCommentRepository)(nil)

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{
		Comments: make(map[int64]*models.Comment),
		NextID:   1,
	}
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return m.InsertError
	}
	comment.ID = m.NextID
	m.NextID++
	stored := *comment
	m.Comments[comment.ID] = &stored
	return nil
}

func (m *MockCommentRepository) BatchCreate(ctx context.Context, comments []*models.Comment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, comment := range comments {
		comment.ID = m.NextID
		m.NextID++
		stored := *comment
		m.Comments[comment.ID] = &stored
	}
	return len(comments), nil
}

func (m *MockCommentRepository) GetByID(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueryError != nil {
		return nil, m.QueryError
	}
	c, ok := m.Comments[id]
	if !ok || c.Kind != kind {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (m *MockCommentRepository) ListForTarget(ctx context.Context, kind models.Kind, ref models.TargetRef, scope repository.Scope) ([]*models.Comment, error) {
	return m.filter(func(c *models.Comment) bool {
		return c.Kind == kind && c.Target == ref && (scope == repository.ScopeAll || c.Visible())
	}, false, 0)
}

func (m *MockCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.Comments[comment.ID]; ok && c.Kind == comment.Kind {
		c.Body = comment.Body
		c.Markup = comment.Markup
		c.ModifiedAt = comment.ModifiedAt
	}
	return nil
}

func (m *MockCommentRepository) Approve(ctx context.Context, kind models.Kind, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.Comments[id]; ok && c.Kind == kind {
		c.IsApproved = true
		c.ApprovedAt = &at
	}
	return nil
}

func (m *MockCommentRepository) Delete(ctx context.Context, kind models.Kind, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, ids)
	deleted := 0
	for _, id := range ids {
		if c, ok := m.Comments[id]; ok && c.Kind == kind {
			delete(m.Comments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockCommentRepository) Count(ctx context.Context, kind models.Kind, ref models.TargetRef, scope repository.Scope) (int, error) {
	list, err := m.ListForTarget(ctx, kind, ref, scope)
	return len(list), err
}

func (m *MockCommentRepository) CountAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Comments), nil
}

func (m *MockCommentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error) {
	return m.filter(func(c *models.Comment) bool {
		return c.Kind == models.KindComment && c.Author.UserID == userID && c.Visible()
	}, true, limit)
}

func (m *MockCommentRepository) Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error) {
	return m.filter(func(c *models.Comment) bool {
		return c.Kind == kind && c.Visible()
	}, true, limit)
}

func (m *MockCommentRepository) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	all, err := m.filter(func(*models.Comment) bool { return true }, false, 0)
	if err != nil {
		return err
	}
	for _, c := range all {
		if err := callback(c); err != nil {
			return err
		}
	}
	return nil
}

// filter returns copies of matching comments by ID, or newest first
func (m *MockCommentRepository) filter(match func(*models.Comment) bool, newestFirst bool, limit int) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueryError != nil {
		return nil, m.QueryError
	}

	var out []*models.Comment
	for _, c := range m.Comments {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockTargetRepository is an in-memory implementation of TargetRepository
type MockTargetRepository struct {
	mu          sync.Mutex
	Targets     map[models.TargetRef]*models.Target
	UpsertError error
}

// Verify interface compliance
var _ repository.TargetRepository = (*MockTargetRepository)(nil)

func NewMockTargetRepository() *MockTargetRepository {
	return &MockTargetRepository{
		Targets: make(map[models.TargetRef]*models.Target),
	}
}

func (m *MockTargetRepository) Upsert(ctx context.Context, target *models.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertError != nil {
		return m.UpsertError
	}
	if existing, ok := m.Targets[target.Ref()]; ok {
		target.CreatedAt = existing.CreatedAt
	}
	stored := *target
	m.Targets[target.Ref()] = &stored
	return nil
}

func (m *MockTargetRepository) GetByRef(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Targets[ref]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (m *MockTargetRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Targets), nil
}

// NewMockRepositories bundles fresh in-memory repositories
func NewMockRepositories() (*repository.Repositories, *MockCommentRepository, *MockTargetRepository) {
	comments := NewMockCommentRepository()
	targets := NewMockTargetRepository()
	return &repository.Repositories{Comment: comments, Target: targets}, comments, targets
}
