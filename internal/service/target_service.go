package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/validation"
)

// targetService is the concrete implementation of TargetService
type targetService struct {
	targets   repository.TargetRepository
	validator *validation.Validator
	log       zerolog.Logger
	now       func() time.Time
}

// newTargetService creates a new TargetService
func newTargetService(targets repository.TargetRepository, validator *validation.Validator, log zerolog.Logger) *targetService {
	return &targetService{
		targets:   targets,
		validator: validator,
		log:       log.With().Str("service", "target").Logger(),
		now:       time.Now,
	}
}

// Upsert registers a commentable object or updates it. Omitted fields keep
// their stored values; a new target is open for comments and published now.
func (s *targetService) Upsert(ctx context.Context, ref models.TargetRef, req *models.TargetRequest) (*models.Target, error) {
	published, errs := s.validator.ValidateTarget(ref, req)
	if len(errs) > 0 {
		return nil, errs
	}

	existing, err := s.targets.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}

	now := s.now().UTC()
	target := &models.Target{
		ContentType:    ref.ContentType,
		ObjectID:       ref.ObjectID,
		Title:          req.Title,
		URL:            req.URL,
		EnableComments: true,
		PublishedAt:    now,
		CreatedAt:      now,
	}
	if existing != nil {
		target.EnableComments = existing.EnableComments
		target.PublishedAt = existing.PublishedAt
		if req.Title == "" {
			target.Title = existing.Title
		}
		if req.URL == "" {
			target.URL = existing.URL
		}
	}
	if req.EnableComments != nil {
		target.EnableComments = *req.EnableComments
	}
	if !published.IsZero() {
		target.PublishedAt = published.UTC()
	}

	if err := s.targets.Upsert(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to store target: %w", err)
	}

	s.log.Info().
		Str("target", ref.String()).
		Bool("created", existing == nil).
		Bool("enable_comments", target.EnableComments).
		Msg("Target saved")
	return target, nil
}

// Get returns a registered target
func (s *targetService) Get(ctx context.Context, ref models.TargetRef) (*models.Target, error) {
	target, err := s.targets.GetByRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("target %s: %w", ref, ErrNotFound)
	}
	return target, nil
}
