package posts_test

import (
	"context"
	"sync"
	"testing"

	"pulse/backend/internal/models"
	"pulse/backend/internal/posts"
	"pulse/backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListPosts(ctx context.Context, offset, limit int, tag string) ([]models.Post, int64, error) {
	args := m.Called(ctx, offset, limit, tag)
	items, _ := args.Get(0).([]models.Post)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockRepository) CreatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	post.ID = "new-post"
	return args.Error(0)
}

func (m *MockRepository) UpdatePost(ctx context.Context, id string, upd models.PostUpdate) (*models.Post, error) {
	args := m.Called(ctx, id, upd)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockRepository) DeletePost(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Envelope
}

func (n *recordingNotifier) EmitToAll(env models.Envelope) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, env)
	return 1
}

type fixture struct {
	mr       *miniredis.Miniredis
	repo     *MockRepository
	notifier *recordingNotifier
	svc      *posts.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := new(MockRepository)
	notifier := &recordingNotifier{}
	return &fixture{
		mr:       mr,
		repo:     repo,
		notifier: notifier,
		svc:      posts.NewService(repo, storage.NewCache(rdb, ""), notifier),
	}
}

func TestService_ListIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []models.Post{{ID: "p1", Title: "hello", AuthorID: "u1"}}
	f.repo.On("ListPosts", ctx, 10, 10, "").Return(items, int64(11), nil).Once()

	page, cached, err := f.svc.List(ctx, 2, 10, "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(11), page.Total)
	assert.True(t, f.mr.Exists("posts:page:2:limit:10"))

	page, cached, err = f.svc.List(ctx, 2, 10, "")
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "hello", page.Posts[0].Title)
	f.repo.AssertNumberOfCalls(t, "ListPosts", 1)
}

func TestService_ListByTagUsesOwnKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("ListPosts", ctx, 0, 5, "go").Return([]models.Post{}, int64(0), nil)

	_, _, err := f.svc.List(ctx, 1, 5, " go ")

	require.NoError(t, err)
	assert.True(t, f.mr.Exists("posts:page:1:limit:5:tag:go"))
}

func TestService_GetCachesAndMapsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindPostByID", ctx, "p1").Return(&models.Post{ID: "p1", Title: "hi"}, nil).Once()
	f.repo.On("FindPostByID", ctx, "missing").Return(nil, storage.ErrNotFound)

	post, cached, err := f.svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "hi", post.Title)

	post, cached, err = f.svc.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "hi", post.Title)

	_, _, err = f.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, posts.ErrNotFound)
	assert.False(t, f.mr.Exists("post:missing"), "misses are not cached")
}

func TestService_CreateInvalidatesListsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mr.Set("posts:page:1:limit:10", "{}"))
	require.NoError(t, f.mr.Set("post:other", "{}"))
	f.repo.On("CreatePost", ctx, mock.MatchedBy(func(p *models.Post) bool {
		return p.Title == "Launch" && p.AuthorID == "u1"
	})).Return(nil)

	post, err := f.svc.Create(ctx, "u1", posts.CreateInput{Title: " Launch ", Content: "body", Tags: []string{"news"}})

	require.NoError(t, err)
	assert.Equal(t, "new-post", post.ID)
	assert.False(t, f.mr.Exists("posts:page:1:limit:10"))
	assert.True(t, f.mr.Exists("post:other"))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.EventNotification, f.notifier.sent[0].Type)
	assert.Equal(t, models.NotificationPayload{Message: "New post: Launch"}, f.notifier.sent[0].Payload)
}

func TestService_UpdateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	title := "edited"
	upd := models.PostUpdate{Title: &title}
	f.repo.On("FindPostByID", ctx, "p1").Return(&models.Post{ID: "p1", AuthorID: "owner"}, nil)
	f.repo.On("UpdatePost", ctx, "p1", upd).Return(&models.Post{ID: "p1", Title: "edited", AuthorID: "owner"}, nil)
	require.NoError(t, f.mr.Set("post:p1", "{}"))
	require.NoError(t, f.mr.Set("posts:page:1:limit:10", "{}"))

	_, err := f.svc.Update(ctx, "intruder", "p1", upd)
	assert.ErrorIs(t, err, posts.ErrForbidden)
	f.repo.AssertNotCalled(t, "UpdatePost", mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, f.mr.Exists("post:p1"), "a rejected update leaves the cache alone")

	post, err := f.svc.Update(ctx, "owner", "p1", upd)
	require.NoError(t, err)
	assert.Equal(t, "edited", post.Title)
	assert.False(t, f.mr.Exists("post:p1"))
	assert.False(t, f.mr.Exists("posts:page:1:limit:10"))
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("FindPostByID", ctx, "p1").Return(&models.Post{ID: "p1", AuthorID: "owner"}, nil)
	f.repo.On("FindPostByID", ctx, "gone").Return(nil, storage.ErrNotFound)
	f.repo.On("DeletePost", ctx, "p1").Return(nil)

	assert.ErrorIs(t, f.svc.Delete(ctx, "owner", "gone"), posts.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "someone", "p1"), posts.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, "owner", "p1"))
	f.repo.AssertNumberOfCalls(t, "DeletePost", 1)
}

func TestService_RepositoryErrorsAreWrapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("ListPosts", ctx, 0, 10, "").Return(nil, int64(0), assert.AnError)

	_, _, err := f.svc.List(ctx, 1, 10, "")

	assert.ErrorIs(t, err, assert.AnError)
}
