package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threaded-comments-api/internal/mocks"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/moderation"
	"github.com/threaded-comments-api/internal/service"
)

func setupWithMocks(t testing.TB) (*service.Services, *mocks.MockCommentRepository) {
	t.Helper()

	repos, comments, targets := mocks.NewMockRepositories()
	now := time.Now()
	targets.Targets[topic] = &models.Target{
		ContentType: topic.ContentType, ObjectID: topic.ObjectID,
		EnableComments: true, PublishedAt: now, CreatedAt: now,
	}
	return service.NewServices(repos, testConfig, moderation.NewRegistry(), nil, zerolog.Nop()), comments
}

func TestCreate_StorageErrorIsNotValidation(t *testing.T) {
	svcs, comments := setupWithMocks(t)
	comments.InsertError = errors.New("disk full")

	_, err := svcs.Comment.Create(context.Background(), service.CreateInput{
		Kind: models.KindComment, Target: topic, User: alice,
		Form: &models.CommentForm{Body: "hello"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, errors.Is(err, service.ErrNotFound))
}

func TestTree_StorageError(t *testing.T) {
	svcs, comments := setupWithMocks(t)
	comments.QueryError = errors.New("connection reset")

	_, err := svcs.Comment.Tree(context.Background(), models.KindComment, topic, service.TreeOptions{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestDelete_PassesSubtreeInPreOrder(t *testing.T) {
	svcs, comments := setupWithMocks(t)
	ctx := context.Background()

	post := func(body string, parent *int64) int64 {
		c := &models.Comment{Kind: models.KindComment, Target: topic, ParentID: parent, Body: body,
			Author: models.Author{UserID: alice.ID}, IsPublic: true}
		require.NoError(t, comments.Create(ctx, c))
		return c.ID
	}
	root := post("root", nil)
	a := post("a", &root)
	post("other", nil)
	b := post("b", &root)
	a1 := post("a1", &a)

	deleted, err := svcs.Comment.Delete(ctx, models.KindComment, root, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	require.Len(t, comments.DeleteCalls, 1)
	assert.Equal(t, []int64{root, a, a1, b}, comments.DeleteCalls[0])
}

func TestCreate_WithoutNotifier(t *testing.T) {
	svcs, _ := setupWithMocks(t)

	res, err := svcs.Comment.Create(context.Background(), service.CreateInput{
		Kind: models.KindComment, Target: topic, User: alice,
		Form: &models.CommentForm{Body: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Comment.ID)
}
