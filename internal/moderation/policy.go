// Package moderation decides whether a new comment is published immediately.
package moderation

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

// Policy is the capability set consulted for each new comment on a content type
type Policy interface {
	IsEnabled(target *models.Target) bool
	IsOpen(target *models.Target, now time.Time) bool
	IsMarkupAllowed(kind markup.Kind) bool
	IsWithinLength(body string) bool
	IsWithinDepth(depth int) bool
	NeedsApproval(target *models.Target, now time.Time) bool
	WantsNotification() bool
}

// Moderator is the configurable Policy. Zero values disable the matching
// check, except the day windows where only an unset value does.
type Moderator struct {
	// EnableField names a boolean target field; false closes the target
	EnableField string `json:"enable_field,omitempty" yaml:"enable_field"`

	// AutoCloseField names a target date; comments close CloseAfter days later
	AutoCloseField string `json:"auto_close_field,omitempty" yaml:"auto_close_field"`
	CloseAfter     *int   `json:"close_after,omitempty" yaml:"close_after"`

	// AutoModerateField names a target date; comments are held for approval
	// ModerateAfter days later
	AutoModerateField string `json:"auto_moderate_field,omitempty" yaml:"auto_moderate_field"`
	ModerateAfter     *int   `json:"moderate_after,omitempty" yaml:"moderate_after"`

	AllowedMarkup     []markup.Kind `json:"allowed_markup,omitempty" yaml:"allowed_markup"`
	MaxCommentLength  int           `json:"max_comment_length,omitempty" yaml:"max_comment_length"`
	MaxDepth          int           `json:"max_depth,omitempty" yaml:"max_depth"`
	EmailNotification bool          `json:"email_notification,omitempty" yaml:"email_notification"`
}

var _ Policy = (*Moderator)(nil)

// Validate rejects configurations that reference unknown fields or carry
// negative limits
func (m *Moderator) Validate() error {
	blank := &models.Target{}
	if m.EnableField != "" {
		if _, ok := blank.Flag(m.EnableField); !ok {
			return fmt.Errorf("unknown enable_field %q", m.EnableField)
		}
	}
	if m.AutoCloseField != "" {
		if _, ok := blank.Date(m.AutoCloseField); !ok {
			return fmt.Errorf("unknown auto_close_field %q", m.AutoCloseField)
		}
	}
	if m.AutoModerateField != "" {
		if _, ok := blank.Date(m.AutoModerateField); !ok {
			return fmt.Errorf("unknown auto_moderate_field %q", m.AutoModerateField)
		}
	}
	if negative(m.CloseAfter) || negative(m.ModerateAfter) || m.MaxCommentLength < 0 || m.MaxDepth < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	for _, k := range m.AllowedMarkup {
		if !k.Valid() {
			return fmt.Errorf("unknown markup kind %d", int(k))
		}
	}
	return nil
}

// IsEnabled checks the target's enable flag. Unknown fields fail closed.
func (m *Moderator) IsEnabled(target *models.Target) bool {
	if m.EnableField == "" {
		return true
	}
	enabled, ok := target.Flag(m.EnableField)
	return ok && enabled
}

// IsOpen reports whether fewer than CloseAfter whole days have passed since
// the target's AutoCloseField date. A window of 0 closes at once.
func (m *Moderator) IsOpen(target *models.Target, now time.Time) bool {
	if m.AutoCloseField == "" || m.CloseAfter == nil {
		return true
	}
	date, ok := target.Date(m.AutoCloseField)
	if !ok {
		return false
	}
	return daysBetween(date, now) < *m.CloseAfter
}

func (m *Moderator) IsMarkupAllowed(kind markup.Kind) bool {
	if len(m.AllowedMarkup) == 0 {
		return true
	}
	for _, k := range m.AllowedMarkup {
		if k == kind {
			return true
		}
	}
	return false
}

// IsWithinLength counts characters, not bytes
func (m *Moderator) IsWithinLength(body string) bool {
	if m.MaxCommentLength == 0 {
		return true
	}
	return utf8.RuneCountInString(body) <= m.MaxCommentLength
}

// IsWithinDepth allows depths 0 through MaxDepth-1
func (m *Moderator) IsWithinDepth(depth int) bool {
	if m.MaxDepth == 0 {
		return true
	}
	return depth < m.MaxDepth
}

func (m *Moderator) NeedsApproval(target *models.Target, now time.Time) bool {
	if m.AutoModerateField == "" || m.ModerateAfter == nil {
		return false
	}
	date, ok := target.Date(m.AutoModerateField)
	if !ok {
		return true
	}
	return daysBetween(date, now) >= *m.ModerateAfter
}

func (m *Moderator) WantsNotification() bool {
	return m.EmailNotification
}

// Days returns a day window for CloseAfter and ModerateAfter
func Days(n int) *int { return &n }

func negative(days *int) bool {
	return days != nil && *days < 0
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
