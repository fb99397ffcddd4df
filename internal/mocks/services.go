package mocks

import (
	"context"
	"html/template"
	"io"
	"net/http"

	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/service"
)

// MockCommentService is a mock implementation of CommentService
type MockCommentService struct {
	CreateFunc  func(ctx context.Context, in service.CreateInput) (*service.CreateResult, error)
	GetFunc     func(ctx context.Context, kind models.Kind, id int64, viewer *auth.User) (*models.Comment, error)
	TreeFunc    func(ctx context.Context, kind models.Kind, ref models.TargetRef, opts service.TreeOptions) ([]models.Node, error)
	EditFunc    func(ctx context.Context, in service.EditInput) (*service.EditResult, error)
	DeleteFunc  func(ctx context.Context, kind models.Kind, id int64, user *auth.User) (int, error)
	ApproveFunc func(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error)
	CountFunc   func(ctx context.Context, kind models.Kind, ref models.TargetRef, unmoderated bool) (int, error)
	ListFunc    func(ctx context.Context, limit int) ([]*models.Comment, error)

	CreateCalls []service.CreateInput
	EditCalls   []service.EditInput
	TreeCalls   []service.TreeOptions
}

// Verify interface compliance
var _ service.CommentService = (*MockCommentService)(nil)

func NewMockCommentService() *MockCommentService {
	return &MockCommentService{}
}

func (m *MockCommentService) Create(ctx context.Context, in service.CreateInput) (*service.CreateResult, error) {
	m.CreateCalls = append(m.CreateCalls, in)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	return &service.CreateResult{
		Comment:  &models.Comment{ID: 1, Kind: in.Kind, Target: in.Target, Body: in.Form.Body, IsPublic: true},
		Decision: moderation.Unmoderated,
	}, nil
}

func (m *MockCommentService) Get(ctx context.Context, kind models.Kind, id int64, viewer *auth.User) (*models.Comment, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, kind, id, viewer)
	}
	return nil, service.ErrNotFound
}

func (m *MockCommentService) Tree(ctx context.Context, kind models.Kind, ref models.TargetRef, opts service.TreeOptions) ([]models.Node, error) {
	m.TreeCalls = append(m.TreeCalls, opts)
	if m.TreeFunc != nil {
		return m.TreeFunc(ctx, kind, ref, opts)
	}
	return nil, nil
}

func (m *MockCommentService) Edit(ctx context.Context, in service.EditInput) (*service.EditResult, error) {
	m.EditCalls = append(m.EditCalls, in)
	if m.EditFunc != nil {
		return m.EditFunc(ctx, in)
	}
	return nil, service.ErrNotFound
}

func (m *MockCommentService) Delete(ctx context.Context, kind models.Kind, id int64, user *auth.User) (int, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, kind, id, user)
	}
	return 1, nil
}

func (m *MockCommentService) Approve(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, kind, id)
	}
	return &models.Comment{ID: id, Kind: kind, IsApproved: true}, nil
}

func (m *MockCommentService) Count(ctx context.Context, kind models.Kind, ref models.TargetRef, unmoderated bool) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, kind, ref, unmoderated)
	}
	return 0, nil
}

func (m *MockCommentService) ForUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockCommentService) Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockCommentService) Render(c *models.Comment) template.HTML {
	return markup.Render(c.Markup, c.Body)
}

// MockTargetService is a mock implementation of TargetService
type MockTargetService struct {
	Targets    map[models.TargetRef]*models.Target
	UpsertFunc func(ctx context.Context, ref models.TargetRef, req *models.TargetRequest) (*models.Target, error)
}

// Verify interface compliance
var _ service.TargetService = (*MockTargetService)(nil)

func NewMockTargetService() *MockTargetService {
	return &MockTargetService{Targets: make(map[models.TargetRef]*models.Target)}
}

func (m *MockTargetService) Upsert(ctx context.Context, ref models.TargetRef, req *models.TargetRequest) (*models.Target, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, ref, req)
	}
	t := &models.Target{ContentType: ref.ContentType, ObjectID: ref.ObjectID, Title: req.Title, URL: req.URL, EnableComments: true}
	m.Targets[ref] = t
	return t, nil
}

func (m *MockTargetService) Get(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	if t, ok := m.Targets[ref]; ok {
		return t, nil
	}
	return nil, service.ErrNotFound
}

// MockModeratorService is a mock implementation of ModeratorService
type MockModeratorService struct {
	Policies map[string]*moderation.Moderator
	PutError error
}

// Verify interface compliance
var _ service.ModeratorService = (*MockModeratorService)(nil)

func NewMockModeratorService() *MockModeratorService {
	return &MockModeratorService{Policies: make(map[string]*moderation.Moderator)}
}

func (m *MockModeratorService) List() []service.ModeratorEntry {
	entries := make([]service.ModeratorEntry, 0, len(m.Policies))
	for ct, p := range m.Policies {
		entries = append(entries, service.ModeratorEntry{ContentType: ct, Policy: p})
	}
	return entries
}

func (m *MockModeratorService) Put(contentType string, p *moderation.Moderator) (bool, error) {
	if m.PutError != nil {
		return false, m.PutError
	}
	_, existed := m.Policies[contentType]
	m.Policies[contentType] = p
	return !existed, nil
}

func (m *MockModeratorService) Remove(contentType string) error {
	if _, ok := m.Policies[contentType]; !ok {
		return service.ErrNotFound
	}
	delete(m.Policies, contentType)
	return nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamCommentsFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	Counts             map[string]int
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Counts: map[string]int{
			"comments": 0,
			"targets":  0,
		},
	}
}

func (m *MockExportService) StreamComments(ctx context.Context, w http.ResponseWriter, format string) error {
	if m.StreamCommentsFunc != nil {
		return m.StreamCommentsFunc(ctx, w, format)
	}
	return nil
}

func (m *MockExportService) GetCount(ctx context.Context, resource string) (int, error) {
	return m.Counts[resource], nil
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	ImportCommentsFunc func(ctx context.Context, r io.Reader) (*models.ImportReport, error)
	Received           []string
}

// Verify interface compliance
var _ service.ImportService = (*MockImportService)(nil)

func NewMockImportService() *MockImportService {
	return &MockImportService{}
}

func (m *MockImportService) ImportComments(ctx context.Context, r io.Reader) (*models.ImportReport, error) {
	if m.ImportCommentsFunc != nil {
		return m.ImportCommentsFunc(ctx, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.Received = append(m.Received, string(data))
	return &models.ImportReport{Total: 1, Imported: 1}, nil
}
