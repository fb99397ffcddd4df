package service

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/threaded-comments-api/internal/auth"
	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/telemetry"
	"github.com/threaded-comments-api/internal/tree"
	"github.com/threaded-comments-api/internal/validation"
)

const (
	// DefaultListLimit applies when a listing does not ask for a size
	DefaultListLimit = 20
	// MaxListLimit caps listing sizes
	MaxListLimit = 100
)

// CreateInput is a new comment submitted against a target
type CreateInput struct {
	Kind      models.Kind
	Target    models.TargetRef
	Form      *models.CommentForm
	User      *auth.User
	IPAddress string
}

// CreateResult is the stored comment and the moderation outcome
type CreateResult struct {
	Comment  *models.Comment     `json:"comment" xml:"comment"`
	Decision moderation.Decision `json:"moderation" xml:"moderation"`
}

// TreeOptions selects the part of a target's thread to materialize
type TreeOptions struct {
	// RootID restricts the tree to one comment's subtree
	RootID *int64
	// Unmoderated includes comments hidden by moderation
	Unmoderated bool
}

// EditInput is an edit of an existing comment
type EditInput struct {
	Kind models.Kind
	ID   int64
	Form *models.EditForm
	User *auth.User
}

// EditResult is the edited comment. With Preview set nothing was stored.
type EditResult struct {
	Comment *models.Comment `json:"comment" xml:"comment"`
	HTML    template.HTML   `json:"html" xml:"html"`
	Preview bool            `json:"preview" xml:"preview"`
}

// commentService is the concrete implementation of CommentService
type commentService struct {
	comments  repository.CommentRepository
	targets   repository.TargetRepository
	registry  *moderation.Registry
	notifier  Notifier
	validator *validation.Validator
	renderer  *markup.Renderer
	log       zerolog.Logger
	now       func() time.Time
}

// newCommentService creates a new CommentService
func newCommentService(
	repos *repository.Repositories,
	registry *moderation.Registry,
	notifier Notifier,
	validator *validation.Validator,
	renderer *markup.Renderer,
	log zerolog.Logger,
) *commentService {
	return &commentService{
		comments:  repos.Comment,
		targets:   repos.Target,
		registry:  registry,
		notifier:  notifier,
		validator: validator,
		renderer:  renderer,
		log:       log.With().Str("service", "comment").Logger(),
		now:       time.Now,
	}
}

// Create validates, moderates and stores a new comment. A moderation
// rejection stores the comment hidden; it is not an error.
func (s *commentService) Create(ctx context.Context, in CreateInput) (res *CreateResult, err error) {
	ctx, span := startSpan(ctx, "CommentService.Create",
		attribute.String("comment.kind", string(in.Kind)),
		attribute.String("target", in.Target.String()),
	)
	defer func() { endSpan(span, err) }()

	if in.Kind == models.KindComment && in.User == nil {
		return nil, ErrUnauthenticated
	}
	if errs := s.validator.ValidateTargetRef(in.Target); len(errs) > 0 {
		return nil, errs
	}
	form, errs := s.validator.ValidateComment(in.Kind, in.Form)
	if len(errs) > 0 {
		return nil, errs
	}

	target, err := s.targets.GetByRef(ctx, in.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("target %s: %w", in.Target, ErrNotFound)
	}

	depth := 0
	parentHidden := false
	if form.ParentID != nil {
		thread, err := s.thread(ctx, in.Kind, in.Target)
		if err != nil {
			return nil, err
		}
		parent, ok := thread[*form.ParentID]
		if !ok || !canSee(parent, in.User) {
			return nil, validation.Errors{{Field: "parent", Message: "parent comment not found", Value: *form.ParentID}}
		}
		lookup := func(id int64) *models.Comment { return thread[id] }
		depth = tree.Depth(parent, lookup)
		parentHidden = !tree.Reachable(parent, lookup)
	}

	now := s.now().UTC()
	policy, _ := s.registry.Lookup(target.ContentType)
	decision := moderation.Evaluate(policy, moderation.Candidate{
		Target: target,
		Body:   form.Body,
		Markup: form.Markup,
		Depth:  depth,
	}, now)
	// Replies under a hidden comment never show in the public tree
	if decision.Public && parentHidden {
		decision.Public = false
		decision.Reason = moderation.ReasonParentHidden
	}

	comment := &models.Comment{
		Kind:        in.Kind,
		Target:      in.Target,
		ParentID:    form.ParentID,
		Body:        form.Body,
		Markup:      form.Markup,
		SubmittedAt: now,
		ModifiedAt:  now,
		IsPublic:    decision.Public,
		IPAddress:   in.IPAddress,
	}
	if in.Kind == models.KindComment {
		comment.Author = models.Author{UserID: in.User.ID, UserName: in.User.Name, Email: in.User.Email}
	} else {
		comment.Author = models.Author{Name: form.Name, Email: form.Email, Website: form.Website}
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}

	event := s.log.Info()
	if !decision.Public {
		event = s.log.Warn()
	}
	event.
		Int64("comment_id", comment.ID).
		Str("kind", string(comment.Kind)).
		Str("target", in.Target.String()).
		Int("depth", depth).
		Bool("moderated", decision.Moderated).
		Bool("public", decision.Public).
		Str("reason", string(decision.Reason)).
		Msg("Comment created")

	if decision.Notify && s.notifier != nil {
		s.notifier.Dispatch(notify.CommentMessage(target, comment, decision.Public))
	}

	span.SetAttributes(
		attribute.Int64("comment.id", comment.ID),
		attribute.Bool("comment.public", decision.Public),
		attribute.String("moderation.reason", string(decision.Reason)),
	)
	return &CreateResult{Comment: comment, Decision: decision}, nil
}

// Get returns a comment. Hidden comments are only shown to staff and the author.
func (s *commentService) Get(ctx context.Context, kind models.Kind, id int64, viewer *auth.User) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if comment == nil || !canSee(comment, viewer) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return comment, nil
}

// Tree materializes a target's thread in pre-order with depths
func (s *commentService) Tree(ctx context.Context, kind models.Kind, ref models.TargetRef, opts TreeOptions) (nodes []models.Node, err error) {
	ctx, span := startSpan(ctx, "CommentService.Tree",
		attribute.String("comment.kind", string(kind)),
		attribute.String("target", ref.String()),
		attribute.Bool("unmoderated", opts.Unmoderated),
	)
	defer func() { endSpan(span, err) }()

	target, err := s.targets.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("target %s: %w", ref, ErrNotFound)
	}

	scope := repository.ScopePublic
	if opts.Unmoderated {
		scope = repository.ScopeAll
	}
	comments, err := s.comments.ListForTarget(ctx, kind, ref, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	nodes = tree.Build(comments, opts.RootID).Slice()
	span.SetAttributes(attribute.Int("tree.size", len(nodes)))
	return nodes, nil
}

// Edit changes a comment's body and markup. Previews render the edit without
// storing it. Edits must still satisfy the content type's markup and length
// limits.
func (s *commentService) Edit(ctx context.Context, in EditInput) (res *EditResult, err error) {
	ctx, span := startSpan(ctx, "CommentService.Edit",
		attribute.String("comment.kind", string(in.Kind)),
		attribute.Int64("comment.id", in.ID),
		attribute.Bool("preview", in.Form.Preview),
	)
	defer func() { endSpan(span, err) }()

	comment, err := s.authorize(ctx, in.Kind, in.ID, in.User)
	if err != nil {
		return nil, err
	}

	body, kind, errs := s.validator.ValidateEdit(in.Form)
	if policy, ok := s.registry.Lookup(comment.Target.ContentType); ok {
		if !errs.Has("markup") && !policy.IsMarkupAllowed(kind) {
			errs = append(errs, validation.ValidationError{Field: "markup", Message: "markup is not allowed here", Value: kind.String()})
		}
		if !errs.Has("comment") && !policy.IsWithinLength(body) {
			errs = append(errs, validation.ValidationError{Field: "comment", Message: "comment is too long"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	edited := *comment
	edited.Body = body
	edited.Markup = kind
	edited.ModifiedAt = s.now().UTC()

	if in.Form.Preview {
		return &EditResult{Comment: &edited, HTML: markup.Render(kind, body), Preview: true}, nil
	}

	if err := s.comments.Update(ctx, &edited); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	s.renderer.Forget(renderKey(comment))

	s.log.Info().
		Int64("comment_id", edited.ID).
		Str("kind", string(edited.Kind)).
		Str("editor", in.User.ID).
		Msg("Comment edited")

	return &EditResult{Comment: &edited, HTML: s.Render(&edited)}, nil
}

// Delete removes a comment and all of its replies
func (s *commentService) Delete(ctx context.Context, kind models.Kind, id int64, user *auth.User) (deleted int, err error) {
	ctx, span := startSpan(ctx, "CommentService.Delete",
		attribute.String("comment.kind", string(kind)),
		attribute.Int64("comment.id", id),
	)
	defer func() { endSpan(span, err) }()

	comment, err := s.authorize(ctx, kind, id, user)
	if err != nil {
		return 0, err
	}

	comments, err := s.comments.ListForTarget(ctx, kind, comment.Target, repository.ScopeAll)
	if err != nil {
		return 0, fmt.Errorf("failed to list comments: %w", err)
	}

	var ids []int64
	for n := range tree.Build(comments, &comment.ID).Nodes() {
		ids = append(ids, n.ID)
		s.renderer.Forget(renderKey(n.Comment))
	}

	deleted, err = s.comments.Delete(ctx, kind, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comments: %w", err)
	}

	s.log.Info().
		Int64("comment_id", id).
		Str("kind", string(kind)).
		Int("deleted", deleted).
		Str("user", user.ID).
		Msg("Comment deleted")
	return deleted, nil
}

// Approve marks a comment approved, making it visible even if moderation hid it
func (s *commentService) Approve(ctx context.Context, kind models.Kind, id int64) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if comment == nil {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	if comment.IsApproved {
		return comment, nil
	}

	at := s.now().UTC()
	if err := s.comments.Approve(ctx, kind, id, at); err != nil {
		return nil, fmt.Errorf("failed to approve comment: %w", err)
	}
	comment.IsApproved = true
	comment.ApprovedAt = &at

	s.log.Info().Int64("comment_id", id).Str("kind", string(kind)).Msg("Comment approved")
	return comment, nil
}

// Count returns the number of a target's comments of one kind
func (s *commentService) Count(ctx context.Context, kind models.Kind, ref models.TargetRef, unmoderated bool) (int, error) {
	if unmoderated {
		return s.comments.Count(ctx, kind, ref, repository.ScopeAll)
	}
	// Visible replies under hidden comments are not in the public tree
	comments, err := s.comments.ListForTarget(ctx, kind, ref, repository.ScopePublic)
	if err != nil {
		return 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return tree.Build(comments, nil).Len(), nil
}

// ForUser returns a registered user's latest visible comments
func (s *commentService) ForUser(ctx context.Context, userID string, limit int) ([]*models.Comment, error) {
	return s.comments.ListByUser(ctx, userID, clampLimit(limit))
}

// Latest returns the newest visible comments of one kind across all targets
func (s *commentService) Latest(ctx context.Context, kind models.Kind, limit int) ([]*models.Comment, error) {
	return s.comments.Latest(ctx, kind, clampLimit(limit))
}

// Render returns the comment body as HTML
func (s *commentService) Render(c *models.Comment) template.HTML {
	return s.renderer.Render(renderKey(c), c.Markup, c.Body)
}

// thread loads every comment of a target and kind keyed by id
func (s *commentService) thread(ctx context.Context, kind models.Kind, ref models.TargetRef) (map[int64]*models.Comment, error) {
	comments, err := s.comments.ListForTarget(ctx, kind, ref, repository.ScopeAll)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	byID := make(map[int64]*models.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}
	return byID, nil
}

// authorize loads a comment the user may change: their own, or any for staff
func (s *commentService) authorize(ctx context.Context, kind models.Kind, id int64, user *auth.User) (*models.Comment, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	comment, err := s.comments.GetByID(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if comment == nil || !canSee(comment, user) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	if !user.Staff && !comment.OwnedBy(user.ID) {
		return nil, ErrForbidden
	}
	return comment, nil
}

func canSee(c *models.Comment, viewer *auth.User) bool {
	if c.Visible() {
		return true
	}
	return viewer != nil && (viewer.Staff || c.OwnedBy(viewer.ID))
}

func renderKey(c *models.Comment) string {
	return string(c.Kind) + ":" + strconv.FormatInt(c.ID, 10) + ":" + strconv.FormatInt(c.ModifiedAt.UnixNano(), 10)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
