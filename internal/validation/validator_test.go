package validation

import (
	"strings"
	"testing"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

func TestValidateComment(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		kind       models.Kind
		form       *models.CommentForm
		wantErrors int
		wantFields []string
	}{
		{
			name:       "valid registered comment",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "Nice post", Markup: "markdown"},
			wantErrors: 0,
		},
		{
			name:       "valid free comment with all fields",
			kind:       models.KindFreeComment,
			form:       &models.CommentForm{Body: "Hello", Name: "Visitor", Email: "v@example.com", Website: "https://example.com"},
			wantErrors: 0,
		},
		{
			name:       "valid reply",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "Reply", Parent: "42"},
			wantErrors: 0,
		},
		{
			name:       "missing body",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "   "},
			wantErrors: 1,
			wantFields: []string{"comment"},
		},
		{
			name:       "body too long",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: strings.Repeat("a", models.MaxBodyLength+1)},
			wantErrors: 1,
			wantFields: []string{"comment"},
		},
		{
			name:       "unknown markup",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "x", Markup: "bbcode"},
			wantErrors: 1,
			wantFields: []string{"markup"},
		},
		{
			name:       "invalid parent",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "x", Parent: "abc"},
			wantErrors: 1,
			wantFields: []string{"parent"},
		},
		{
			name:       "negative parent",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "x", Parent: "-3"},
			wantErrors: 1,
			wantFields: []string{"parent"},
		},
		{
			name:       "free comment without name",
			kind:       models.KindFreeComment,
			form:       &models.CommentForm{Body: "x"},
			wantErrors: 1,
			wantFields: []string{"name"},
		},
		{
			name:       "free comment with bad email and website",
			kind:       models.KindFreeComment,
			form:       &models.CommentForm{Body: "x", Name: "n", Email: "not-an-email", Website: "ftp://example.com"},
			wantErrors: 2,
			wantFields: []string{"email", "website"},
		},
		{
			name:       "registered comment ignores free fields",
			kind:       models.KindComment,
			form:       &models.CommentForm{Body: "x", Email: "not-an-email"},
			wantErrors: 0,
		},
		{
			name:       "unknown kind",
			kind:       models.Kind("review"),
			form:       &models.CommentForm{Body: "x"},
			wantErrors: 1,
			wantFields: []string{"kind"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errors := validator.ValidateComment(tt.kind, tt.form)
			if len(errors) != tt.wantErrors {
				t.Errorf("Expected %d errors, got %d: %+v", tt.wantErrors, len(errors), errors)
			}
			for _, field := range tt.wantFields {
				if !errors.Has(field) {
					t.Errorf("Expected error for field %s", field)
				}
			}
		})
	}
}

func TestValidateComment_Normalizes(t *testing.T) {
	validator := NewValidator()

	out, errors := validator.ValidateComment(models.KindFreeComment, &models.CommentForm{
		Body:   "  padded  ",
		Markup: "3",
		Parent: "7",
		Name:   " Ann ",
	})
	if err := errors.Err(); err != nil {
		t.Fatalf("Unexpected errors: %v", err)
	}
	if out.Body != "padded" {
		t.Errorf("Expected trimmed body, got %q", out.Body)
	}
	if out.Markup != markup.ReST {
		t.Errorf("Expected ReST, got %v", out.Markup)
	}
	if out.ParentID == nil || *out.ParentID != 7 {
		t.Errorf("Expected parent 7, got %v", out.ParentID)
	}
	if out.Name != "Ann" {
		t.Errorf("Expected trimmed name, got %q", out.Name)
	}
}

func TestValidateComment_DefaultMarkup(t *testing.T) {
	out, _ := NewValidator().ValidateComment(models.KindComment, &models.CommentForm{Body: "x"})
	if out.Markup != markup.Plaintext {
		t.Errorf("Expected plaintext default, got %v", out.Markup)
	}
}

func TestValidateEdit(t *testing.T) {
	validator := NewValidator()

	body, kind, errors := validator.ValidateEdit(&models.EditForm{Body: " edited ", Markup: "textile"})
	if len(errors) != 0 {
		t.Fatalf("Unexpected errors: %v", errors)
	}
	if body != "edited" || kind != markup.Textile {
		t.Errorf("Got body=%q kind=%v", body, kind)
	}

	_, _, errors = validator.ValidateEdit(&models.EditForm{Body: "", Markup: "9"})
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
}

func TestValidateTarget(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		ref        models.TargetRef
		req        *models.TargetRequest
		wantFields []string
	}{
		{name: "valid", ref: models.TargetRef{ContentType: "topic", ObjectID: "1"}, req: &models.TargetRequest{URL: "/topics/1", PublishedAt: "2024-01-01T00:00:00Z"}},
		{name: "dotted content type", ref: models.TargetRef{ContentType: "forum.topic", ObjectID: "1"}, req: &models.TargetRequest{}},
		{name: "missing content type", ref: models.TargetRef{ObjectID: "1"}, req: &models.TargetRequest{}, wantFields: []string{"content_type"}},
		{name: "uppercase content type", ref: models.TargetRef{ContentType: "Topic", ObjectID: "1"}, req: &models.TargetRequest{}, wantFields: []string{"content_type"}},
		{name: "missing object id", ref: models.TargetRef{ContentType: "topic"}, req: &models.TargetRequest{}, wantFields: []string{"object_id"}},
		{name: "bad date", ref: models.TargetRef{ContentType: "topic", ObjectID: "1"}, req: &models.TargetRequest{PublishedAt: "yesterday"}, wantFields: []string{"published_at"}},
		{name: "bad url", ref: models.TargetRef{ContentType: "topic", ObjectID: "1"}, req: &models.TargetRequest{URL: "javascript:alert(1)"}, wantFields: []string{"url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errors := validator.ValidateTarget(tt.ref, tt.req)
			if len(errors) != len(tt.wantFields) {
				t.Errorf("Expected %d errors, got %d: %+v", len(tt.wantFields), len(errors), errors)
			}
			for _, field := range tt.wantFields {
				if !errors.Has(field) {
					t.Errorf("Expected error for field %s", field)
				}
			}
		})
	}
}

func TestErrors(t *testing.T) {
	var none Errors
	if none.Err() != nil {
		t.Error("Empty errors should be nil")
	}

	errs := Errors{{Field: "comment", Message: "comment is required"}}
	if errs.Err() == nil {
		t.Fatal("Expected non-nil error")
	}
	if !strings.Contains(errs.Error(), "comment: comment is required") {
		t.Errorf("Unexpected message: %s", errs.Error())
	}
}

func TestValidateImported(t *testing.T) {
	validator := NewValidator()
	ref := models.TargetRef{ContentType: "blog.post", ObjectID: "1"}

	tests := []struct {
		name       string
		comment    *models.Comment
		wantFields []string
	}{
		{
			name:    "registered comment",
			comment: &models.Comment{Kind: models.KindComment, Target: ref, Body: "hi", Markup: markup.Markdown, Author: models.Author{UserID: "u1"}},
		},
		{
			name:    "free comment",
			comment: &models.Comment{Kind: models.KindFreeComment, Target: ref, Body: "hi", Markup: markup.Plaintext, Author: models.Author{Name: "Eve"}},
		},
		{
			name:       "registered comment without user",
			comment:    &models.Comment{Kind: models.KindComment, Target: ref, Body: "hi", Markup: markup.Markdown},
			wantFields: []string{"user_id"},
		},
		{
			name:       "free comment without name and bad email",
			comment:    &models.Comment{Kind: models.KindFreeComment, Target: ref, Body: "hi", Markup: markup.Markdown, Author: models.Author{Email: "nope"}},
			wantFields: []string{"name", "email"},
		},
		{
			name:       "unknown kind, markup and empty body",
			comment:    &models.Comment{Kind: "review", Target: ref, Markup: markup.Kind(9)},
			wantFields: []string{"kind", "comment", "markup"},
		},
		{
			name:       "bad target",
			comment:    &models.Comment{Kind: models.KindFreeComment, Target: models.TargetRef{ContentType: "Blog Post"}, Body: "hi", Markup: markup.Markdown, Author: models.Author{Name: "Eve"}},
			wantFields: []string{"content_type", "object_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validator.ValidateImported(tt.comment)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("Expected %d errors, got %d: %v", len(tt.wantFields), len(errs), errs)
			}
			for _, f := range tt.wantFields {
				if !errs.Has(f) {
					t.Errorf("Expected error on %s, got %v", f, errs)
				}
			}
		})
	}
}
