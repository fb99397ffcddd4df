package service_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threaded-comments-api/internal/markup"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/service"
	"github.com/threaded-comments-api/internal/validation"
)

func TestImport_RoundTripsExport(t *testing.T) {
	src := setup(t, time.Hour)
	r1 := src.post(t, alice, "root one", "", 0)
	a := src.post(t, bob, "reply", "", r1.Comment.ID)
	src.post(t, alice, "nested", "", a.Comment.ID)
	src.post(t, bob, "root two", "", 0)

	w := httptest.NewRecorder()
	require.NoError(t, src.svcs.Export.StreamComments(context.Background(), w, "ndjson"))

	dst := setup(t, time.Hour)
	dst.post(t, alice, "existing", "", 0)

	report, err := dst.svcs.Import.ImportComments(context.Background(), strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 4, report.Imported)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Errors)

	nodes := dst.tree(t, service.TreeOptions{})
	assert.Equal(t, []string{"existing", "root one", "reply", "nested", "root two"}, bodies(nodes))
	depths := make([]int, 0, len(nodes))
	for _, n := range nodes {
		depths = append(depths, n.Depth)
	}
	assert.Equal(t, []int{0, 0, 1, 2, 0}, depths)
	assert.Equal(t, "bob", nodes[2].Author.UserName)
}

func TestImport_RejectsBadLines(t *testing.T) {
	f := setup(t, time.Hour)

	target := `"target":{"content_type":"blog.post","object_id":"1"}`
	input := strings.Join([]string{
		`{"id":10,"kind":"freecomment",` + target + `,"author":{"name":"Eve"},"comment":"root","markup":5,"is_public":true}`,
		`not json`,
		`{"id":11,"kind":"comment",` + target + `,"comment":"x","markup":1}`,
		`{"id":12,"kind":"freecomment","target":{"content_type":"blog.post","object_id":"9"},"author":{"name":"Eve"},"comment":"x","markup":1}`,
		`{"id":13,"kind":"freecomment",` + target + `,"author":{"name":"Eve"},"comment":"x","markup":1,"parent_id":99}`,
		`{"id":14,"kind":"comment",` + target + `,"author":{"user_id":"u1"},"comment":"x","markup":1,"parent_id":10}`,
		`{"id":10,"kind":"freecomment",` + target + `,"author":{"name":"Eve"},"comment":"again","markup":5}`,
		``,
		`{"id":15,"kind":"freecomment",` + target + `,"author":{"name":"Mallory"},"comment":"reply","markup":"markdown","parent_id":10,"is_approved":true}`,
	}, "\n")

	report, err := f.svcs.Import.ImportComments(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 8, report.Total)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 6, report.Failed)

	got := make(map[int]string)
	for _, e := range report.Errors {
		got[e.Line] = e.Field
	}
	assert.Equal(t, map[int]string{2: "json", 3: "user_id", 4: "target", 5: "parent_id", 6: "parent_id", 7: "id"}, got)

	nodes, err := f.svcs.Comment.Tree(context.Background(), models.KindFreeComment, topic, service.TreeOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "root", nodes[0].Body)
	assert.Equal(t, 1, nodes[1].Depth)
	assert.True(t, nodes[1].IsApproved)
	assert.NotNil(t, nodes[1].ApprovedAt)
	assert.False(t, nodes[1].SubmittedAt.IsZero())
}

func TestImport_ErrorListIsCapped(t *testing.T) {
	f := setup(t, time.Hour)

	report, err := f.svcs.Import.ImportComments(context.Background(), strings.NewReader(strings.Repeat("{}\n", 150)))
	require.NoError(t, err)
	assert.Equal(t, 150, report.Failed)
	assert.Len(t, report.Errors, 100)
	assert.True(t, report.Truncated)
}

func TestImport_FailedBatchOrphansReplies(t *testing.T) {
	svcs, comments := setupWithMocks(t)
	comments.InsertError = errors.New("disk full")

	target := `"target":{"content_type":"blog.post","object_id":"1"}`
	input := `{"id":1,"kind":"comment",` + target + `,"author":{"user_id":"u1"},"comment":"root","markup":1}` + "\n" +
		`{"id":2,"kind":"comment",` + target + `,"author":{"user_id":"u1"},"comment":"reply","markup":1,"parent_id":1}` + "\n"

	report, err := svcs.Import.ImportComments(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "storage", report.Errors[0].Field)
	assert.Equal(t, "parent_id", report.Errors[1].Field)
}

func TestImport_NullMarkupDefaults(t *testing.T) {
	f := setup(t, time.Hour)

	input := `{"id":1,"kind":"comment","target":{"content_type":"blog.post","object_id":"1"},"author":{"user_id":"u1"},"comment":"plain","markup":null,"is_public":true}`
	report, err := f.svcs.Import.ImportComments(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, report.Imported, "errors: %+v", report.Errors)

	nodes := f.tree(t, service.TreeOptions{})
	require.Len(t, nodes, 1)
	assert.Equal(t, markup.Default, nodes[0].Markup)
}

func TestImport_LineTooLong(t *testing.T) {
	f := setup(t, time.Hour)

	target := `"target":{"content_type":"blog.post","object_id":"1"}`
	first := `{"id":1,"kind":"comment",` + target + `,"author":{"user_id":"u1"},"comment":"ok","markup":1}`
	huge := `{"comment":"` + strings.Repeat("x", 2*1024*1024) + `"}`

	report, err := f.svcs.Import.ImportComments(context.Background(), strings.NewReader(first+"\n"+huge+"\n"))
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("line"))
	assert.Equal(t, 2, verrs[0].Value)
	assert.Equal(t, 1, report.Imported)
}

func TestImport_Cancelled(t *testing.T) {
	svcs, _ := setupWithMocks(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svcs.Import.ImportComments(ctx, strings.NewReader(strings.Repeat("{}\n", 1000)))
	assert.ErrorIs(t, err, context.Canceled)
}
