package moderation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func topic(publishedDaysAgo int, enabled bool) *models.Target {
	return &models.Target{
		ContentType:    "topic",
		ObjectID:       "1",
		EnableComments: enabled,
		PublishedAt:    now.AddDate(0, 0, -publishedDaysAgo),
		CreatedAt:      now.AddDate(0, 0, -publishedDaysAgo),
	}
}

func candidate(target *models.Target, body string, kind markup.Kind, depth int) Candidate {
	return Candidate{Target: target, Body: body, Markup: kind, Depth: depth}
}

func TestEvaluate_NoPolicy(t *testing.T) {
	d := Evaluate(nil, candidate(topic(0, false), "hi", markup.Plaintext, 0), now)
	assert.Equal(t, Unmoderated, d)
	assert.True(t, d.Public)
}

func TestEvaluate_Checks(t *testing.T) {
	tests := []struct {
		name      string
		moderator *Moderator
		candidate Candidate
		public    bool
		reason    Reason
	}{
		{
			name:      "empty moderator allows everything",
			moderator: &Moderator{},
			candidate: candidate(topic(100, false), strings.Repeat("x", 5000), markup.Textile, 40),
			public:    true,
		},
		{
			name:      "enable field false",
			moderator: &Moderator{EnableField: models.FieldEnableComments},
			candidate: candidate(topic(0, false), "hi", markup.Plaintext, 0),
			reason:    ReasonDisabled,
		},
		{
			name:      "enable field true",
			moderator: &Moderator{EnableField: models.FieldEnableComments},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 0),
			public:    true,
		},
		{
			name:      "closed after 15 days on a 20 day old topic",
			moderator: &Moderator{AutoCloseField: models.FieldPublishedAt, CloseAfter: Days(15)},
			candidate: candidate(topic(20, true), "hi", markup.Plaintext, 0),
			reason:    ReasonClosed,
		},
		{
			name:      "open on a 14 day old topic",
			moderator: &Moderator{AutoCloseField: models.FieldPublishedAt, CloseAfter: Days(15)},
			candidate: candidate(topic(14, true), "hi", markup.Plaintext, 0),
			public:    true,
		},
		{
			name:      "closes exactly on day 15",
			moderator: &Moderator{AutoCloseField: models.FieldPublishedAt, CloseAfter: Days(15)},
			candidate: candidate(topic(15, true), "hi", markup.Plaintext, 0),
			reason:    ReasonClosed,
		},
		{
			name:      "zero close window closes at once",
			moderator: &Moderator{AutoCloseField: models.FieldPublishedAt, CloseAfter: Days(0)},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 0),
			reason:    ReasonClosed,
		},
		{
			name:      "unset close window never closes",
			moderator: &Moderator{AutoCloseField: models.FieldPublishedAt},
			candidate: candidate(topic(400, true), "hi", markup.Plaintext, 0),
			public:    true,
		},
		{
			name:      "zero moderation window holds every comment",
			moderator: &Moderator{AutoModerateField: models.FieldPublishedAt, ModerateAfter: Days(0)},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 0),
			reason:    ReasonAwaitingApproval,
		},
		{
			name:      "textile not in allowed markup",
			moderator: &Moderator{AllowedMarkup: []markup.Kind{markup.ReST}},
			candidate: candidate(topic(0, true), "hi", markup.Textile, 0),
			reason:    ReasonMarkupNotAllowed,
		},
		{
			name:      "rest in allowed markup",
			moderator: &Moderator{AllowedMarkup: []markup.Kind{markup.ReST}},
			candidate: candidate(topic(0, true), "hi", markup.ReST, 0),
			public:    true,
		},
		{
			name:      "longer than 10 characters",
			moderator: &Moderator{MaxCommentLength: 10},
			candidate: candidate(topic(0, true), "This comment is too long", markup.Plaintext, 0),
			reason:    ReasonTooLong,
		},
		{
			name:      "exactly 10 multibyte characters",
			moderator: &Moderator{MaxCommentLength: 10},
			candidate: candidate(topic(0, true), "éééééééééé", markup.Plaintext, 0),
			public:    true,
		},
		{
			name:      "too deep",
			moderator: &Moderator{MaxDepth: 2},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 2),
			reason:    ReasonTooDeep,
		},
		{
			name:      "within depth",
			moderator: &Moderator{MaxDepth: 2},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 1),
			public:    true,
		},
		{
			name:      "held for approval on old topic",
			moderator: &Moderator{AutoModerateField: models.FieldPublishedAt, ModerateAfter: Days(7)},
			candidate: candidate(topic(8, true), "hi", markup.Plaintext, 0),
			reason:    ReasonAwaitingApproval,
		},
		{
			name:      "unknown enable field fails closed",
			moderator: &Moderator{EnableField: "is_open"},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 0),
			reason:    ReasonDisabled,
		},
		{
			name:      "unknown close field fails closed",
			moderator: &Moderator{AutoCloseField: "closed_at", CloseAfter: Days(1)},
			candidate: candidate(topic(0, true), "hi", markup.Plaintext, 0),
			reason:    ReasonClosed,
		},
		{
			name: "first failing check wins",
			moderator: &Moderator{
				EnableField:      models.FieldEnableComments,
				MaxCommentLength: 1,
			},
			candidate: candidate(topic(0, false), "too long", markup.Plaintext, 0),
			reason:    ReasonDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.moderator, tt.candidate, now)
			assert.True(t, d.Moderated)
			assert.Equal(t, tt.public, d.Public)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestEvaluate_Notification(t *testing.T) {
	d := Evaluate(&Moderator{EmailNotification: true, MaxCommentLength: 1}, candidate(topic(0, true), "long", markup.Plaintext, 0), now)
	assert.False(t, d.Public)
	assert.True(t, d.Notify, "hidden comments still notify")

	d = Evaluate(&Moderator{}, candidate(topic(0, true), "ok", markup.Plaintext, 0), now)
	assert.False(t, d.Notify)
}

func TestModerator_Validate(t *testing.T) {
	assert.NoError(t, (&Moderator{EnableField: models.FieldEnableComments, AutoCloseField: models.FieldCreatedAt}).Validate())
	assert.Error(t, (&Moderator{EnableField: "nope"}).Validate())
	assert.Error(t, (&Moderator{AutoCloseField: "nope"}).Validate())
	assert.Error(t, (&Moderator{AutoModerateField: "nope"}).Validate())
	assert.Error(t, (&Moderator{MaxDepth: -1}).Validate())
	assert.Error(t, (&Moderator{AutoCloseField: models.FieldCreatedAt, CloseAfter: Days(-1)}).Validate())
	assert.Error(t, (&Moderator{AllowedMarkup: []markup.Kind{4}}).Validate())
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("topic", &Moderator{MaxCommentLength: 10}))

	err := r.Register("topic", &Moderator{})
	assert.True(t, errors.Is(err, ErrAlreadyModerated))

	p, ok := r.Lookup("topic")
	require.True(t, ok)
	assert.Equal(t, 10, p.(*Moderator).MaxCommentLength, "failed re-register keeps the original")

	require.NoError(t, r.Unregister("topic"))
	_, ok = r.Lookup("topic")
	assert.False(t, ok)

	err = r.Unregister("topic")
	assert.True(t, errors.Is(err, ErrNotModerated))

	require.NoError(t, r.Register("topic", &Moderator{MaxCommentLength: 20}))
	p, _ = r.Lookup("topic")
	assert.Equal(t, 20, p.(*Moderator).MaxCommentLength)
}

func TestRegistry_Replace(t *testing.T) {
	r := NewRegistry()

	replaced, err := r.Replace("post", &Moderator{MaxDepth: 1})
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = r.Replace("post", &Moderator{MaxDepth: 3})
	require.NoError(t, err)
	assert.True(t, replaced)

	p, _ := r.Lookup("post")
	assert.Equal(t, 3, p.(*Moderator).MaxDepth)

	_, err = r.Replace("", &Moderator{})
	assert.Error(t, err)
	assert.Error(t, r.Register("post", nil))
}

func TestRegistry_ContentTypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, ct := range []string{"topic", "article", "photo"} {
		require.NoError(t, r.Register(ct, &Moderator{}))
	}
	assert.Equal(t, []string{"article", "photo", "topic"}, r.ContentTypes())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Replace("topic", &Moderator{MaxDepth: 2})
		}()
		go func() {
			defer wg.Done()
			r.Lookup("topic")
		}()
	}
	wg.Wait()

	_, ok := r.Lookup("topic")
	assert.True(t, ok)
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moderation.yaml")
	doc := `
moderators:
  topic:
    enable_field: enable_comments
    auto_close_field: published_at
    close_after: 15
    allowed_markup: [markdown, 5]
    max_comment_length: 500
    email_notification: true
  photo:
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r := NewRegistry()
	n, err := r.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, ok := r.Lookup("topic")
	require.True(t, ok)
	m := p.(*Moderator)
	require.NotNil(t, m.CloseAfter)
	assert.Equal(t, 15, *m.CloseAfter)
	assert.Equal(t, []markup.Kind{markup.Markdown, markup.Plaintext}, m.AllowedMarkup)
	assert.True(t, m.WantsNotification())

	_, ok = r.Lookup("photo")
	assert.True(t, ok)
}

func TestRegistry_LoadRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	_, err := r.Load([]byte("moderators:\n  a:\n    max_depth: 1\n  b:\n    enable_field: bogus\n"))
	assert.Error(t, err)
	assert.Empty(t, r.ContentTypes(), "nothing is registered when any entry is invalid")

	_, err = r.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
