package handler_test

import (
	"context"

	"pulse/backend/internal/auth"
	"pulse/backend/internal/models"
	"pulse/backend/internal/posts"

	"github.com/stretchr/testify/mock"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Register(ctx context.Context, in auth.RegisterInput) (*models.User, string, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func (m *MockAccounts) Login(ctx context.Context, in auth.LoginInput) (*models.User, string, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func (m *MockAccounts) Logout(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockPosts struct {
	mock.Mock
}

func (m *MockPosts) List(ctx context.Context, page, limit int, tag string) (posts.Page, bool, error) {
	args := m.Called(ctx, page, limit, tag)
	return args.Get(0).(posts.Page), args.Bool(1), args.Error(2)
}

func (m *MockPosts) Get(ctx context.Context, id string) (*models.Post, bool, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Bool(1), args.Error(2)
}

func (m *MockPosts) Create(ctx context.Context, authorID string, in posts.CreateInput) (*models.Post, error) {
	args := m.Called(ctx, authorID, in)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockPosts) Update(ctx context.Context, userID, id string, upd models.PostUpdate) (*models.Post, error) {
	args := m.Called(ctx, userID, id, upd)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockPosts) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Recent(ctx context.Context, n int64) ([]models.Envelope, error) {
	args := m.Called(ctx, n)
	envs, _ := args.Get(0).([]models.Envelope)
	return envs, args.Error(1)
}

func (m *MockHistory) Limit() int64 {
	return 100
}

type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) Online(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]string)
	return users, args.Error(1)
}

func (m *MockPresence) Get(ctx context.Context, userID string) (models.PresenceRecord, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.PresenceRecord), args.Error(1)
}

// staticAuthenticator accepts the token "token-<id>" for user <id>.
type staticAuthenticator struct{}

func (staticAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return nil, auth.ErrInvalidToken
	}
	id := token[len(prefix):]
	return &models.User{ID: id, Email: id + "@example.com"}, nil
}
