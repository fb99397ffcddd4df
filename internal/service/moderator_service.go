package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/validation"
)

// ModeratorEntry is a content type and its policy
type ModeratorEntry struct {
	ContentType string            `json:"content_type" xml:"content_type"`
	Policy      moderation.Policy `json:"policy" xml:"-"`
}

// moderatorService is the concrete implementation of ModeratorService
type moderatorService struct {
	registry  *moderation.Registry
	validator *validation.Validator
	log       zerolog.Logger
}

// newModeratorService creates a new ModeratorService
func newModeratorService(registry *moderation.Registry, validator *validation.Validator, log zerolog.Logger) *moderatorService {
	return &moderatorService{
		registry:  registry,
		validator: validator,
		log:       log.With().Str("service", "moderator").Logger(),
	}
}

// List returns every registered policy ordered by content type
func (s *moderatorService) List() []ModeratorEntry {
	types := s.registry.ContentTypes()
	entries := make([]ModeratorEntry, 0, len(types))
	for _, ct := range types {
		if p, ok := s.registry.Lookup(ct); ok {
			entries = append(entries, ModeratorEntry{ContentType: ct, Policy: p})
		}
	}
	return entries
}

// Put registers or replaces the policy for a content type. It reports whether
// the content type was newly moderated.
func (s *moderatorService) Put(contentType string, m *moderation.Moderator) (bool, error) {
	if errs := s.validator.ValidateContentType(contentType); len(errs) > 0 {
		return false, errs
	}
	if m == nil {
		return false, validation.Errors{{Field: "moderator", Message: "moderator is required"}}
	}
	if err := m.Validate(); err != nil {
		return false, validation.Errors{{Field: "moderator", Message: err.Error()}}
	}

	replaced, err := s.registry.Replace(contentType, m)
	if err != nil {
		return false, fmt.Errorf("failed to register moderator: %w", err)
	}

	s.log.Info().
		Str("content_type", contentType).
		Bool("replaced", replaced).
		Msg("Moderator registered")
	return !replaced, nil
}

// Remove unregisters the policy for a content type
func (s *moderatorService) Remove(contentType string) error {
	if err := s.registry.Unregister(contentType); err != nil {
		return fmt.Errorf("%w: %w", err, ErrNotFound)
	}
	s.log.Info().Str("content_type", contentType).Msg("Moderator unregistered")
	return nil
}
