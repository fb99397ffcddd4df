package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(?:[-_.][a-z0-9]+)*$`)
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field" xml:"field"`
	Message string      `json:"message" xml:"message"`
	Value   interface{} `json:"value,omitempty" xml:"value,omitempty"`
}

// Errors is a list of field errors that is itself an error
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns nil when there are no errors
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Has reports whether any error concerns field
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Comment is a validated comment form
type Comment struct {
	Body     string
	Markup   markup.Kind
	ParentID *int64
	Name     string
	Email    string
	Website  string
}

// Validator provides validation methods
type Validator struct {
	maxBodyLength int
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{maxBodyLength: models.MaxBodyLength}
}

// ValidateComment validates a submitted comment form for the given kind
func (v *Validator) ValidateComment(kind models.Kind, form *models.CommentForm) (*Comment, Errors) {
	var errors Errors
	out := &Comment{
		Body:    strings.TrimSpace(form.Body),
		Name:    strings.TrimSpace(form.Name),
		Email:   strings.TrimSpace(form.Email),
		Website: strings.TrimSpace(form.Website),
	}

	if !models.ValidKinds[kind] {
		errors = append(errors, ValidationError{Field: "kind", Message: "kind must be one of: comment, freecomment", Value: string(kind)})
	}

	errors = append(errors, v.validateBody(out.Body)...)

	// Validate markup
	kindOfMarkup, err := markup.Parse(form.Markup)
	if err != nil {
		errors = append(errors, ValidationError{Field: "markup", Message: "invalid markup, must be one of: markdown, textile, restructuredtext, plaintext", Value: form.Markup})
	}
	out.Markup = kindOfMarkup

	// Validate parent
	if p := strings.TrimSpace(form.Parent); p != "" {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			errors = append(errors, ValidationError{Field: "parent", Message: "parent must be a positive integer", Value: form.Parent})
		} else {
			out.ParentID = &id
		}
	}

	// Free comments identify their author in the form
	if kind == models.KindFreeComment {
		if out.Name == "" {
			errors = append(errors, ValidationError{Field: "name", Message: "name is required"})
		} else if utf8.RuneCountInString(out.Name) > models.MaxNameLength {
			errors = append(errors, ValidationError{Field: "name", Message: fmt.Sprintf("name exceeds maximum of %d characters", models.MaxNameLength)})
		}
		if out.Email != "" && !emailRegex.MatchString(out.Email) {
			errors = append(errors, ValidationError{Field: "email", Message: "invalid email format", Value: out.Email})
		}
		if out.Website != "" && !isValidWebsite(out.Website) {
			errors = append(errors, ValidationError{Field: "website", Message: "website must be an http or https URL", Value: out.Website})
		}
	}

	return out, errors
}

// ValidateEdit validates the body and markup of an edited comment
func (v *Validator) ValidateEdit(form *models.EditForm) (string, markup.Kind, Errors) {
	body := strings.TrimSpace(form.Body)
	errors := v.validateBody(body)

	kind, err := markup.Parse(form.Markup)
	if err != nil {
		errors = append(errors, ValidationError{Field: "markup", Message: "invalid markup, must be one of: markdown, textile, restructuredtext, plaintext", Value: form.Markup})
	}
	return body, kind, errors
}

// ValidateTargetRef validates a content type / object id pair
func (v *Validator) ValidateTargetRef(ref models.TargetRef) Errors {
	errors := v.ValidateContentType(ref.ContentType)
	if ref.ObjectID == "" {
		errors = append(errors, ValidationError{Field: "object_id", Message: "object_id is required"})
	} else if len(ref.ObjectID) > 100 {
		errors = append(errors, ValidationError{Field: "object_id", Message: "object_id exceeds maximum of 100 characters"})
	}
	return errors
}

// ValidateContentType validates a content type slug
func (v *Validator) ValidateContentType(contentType string) Errors {
	var errors Errors
	if contentType == "" {
		errors = append(errors, ValidationError{Field: "content_type", Message: "content_type is required"})
	} else if !slugRegex.MatchString(contentType) {
		errors = append(errors, ValidationError{Field: "content_type", Message: "content_type must be lowercase letters, numbers and separators", Value: contentType})
	}
	return errors
}

// ValidateTarget validates a target registration request
func (v *Validator) ValidateTarget(ref models.TargetRef, req *models.TargetRequest) (time.Time, Errors) {
	errors := v.ValidateTargetRef(ref)

	if req.URL != "" && !isValidWebsite(req.URL) && !strings.HasPrefix(req.URL, "/") {
		errors = append(errors, ValidationError{Field: "url", Message: "url must be absolute or rooted", Value: req.URL})
	}

	var published time.Time
	if req.PublishedAt != "" {
		t, err := time.Parse(time.RFC3339, req.PublishedAt)
		if err != nil {
			errors = append(errors, ValidationError{Field: "published_at", Message: "invalid ISO 8601 date format", Value: req.PublishedAt})
		}
		published = t
	}
	return published, errors
}

// ValidateImported validates a comment record read from an import stream
func (v *Validator) ValidateImported(c *models.Comment) Errors {
	var errors Errors
	if !models.ValidKinds[c.Kind] {
		errors = append(errors, ValidationError{Field: "kind", Message: "kind must be one of: comment, freecomment", Value: string(c.Kind)})
	}
	errors = append(errors, v.ValidateTargetRef(c.Target)...)
	errors = append(errors, v.validateBody(strings.TrimSpace(c.Body))...)
	if !c.Markup.Valid() {
		errors = append(errors, ValidationError{Field: "markup", Message: "unknown markup", Value: int(c.Markup)})
	}

	switch c.Kind {
	case models.KindComment:
		if c.Author.UserID == "" {
			errors = append(errors, ValidationError{Field: "user_id", Message: "user_id is required for registered comments"})
		}
	case models.KindFreeComment:
		if strings.TrimSpace(c.Author.Name) == "" {
			errors = append(errors, ValidationError{Field: "name", Message: "name is required"})
		}
		if c.Author.Email != "" && !emailRegex.MatchString(c.Author.Email) {
			errors = append(errors, ValidationError{Field: "email", Message: "invalid email format", Value: c.Author.Email})
		}
	}
	return errors
}

func (v *Validator) validateBody(body string) Errors {
	var errors Errors
	if body == "" {
		errors = append(errors, ValidationError{Field: "comment", Message: "comment is required"})
	} else if n := utf8.RuneCountInString(body); n > v.maxBodyLength {
		errors = append(errors, ValidationError{
			Field:   "comment",
			Message: fmt.Sprintf("comment exceeds maximum of %d characters (has %d)", v.maxBodyLength, n),
		})
	}
	return errors
}

func isValidWebsite(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
