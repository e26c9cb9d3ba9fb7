package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pulse/backend/internal/models"
	"pulse/backend/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordLogin      = errors.New("account has no password, use external login")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore is the relational lookup the account service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// EventTracker receives analytics rows. Failures are logged only.
type EventTracker interface {
	Track(ctx context.Context, eventType, userID string, metadata map[string]any) error
	RecordSession(ctx context.Context, session models.UserSession) error
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Service implements registration, login, logout and bearer authentication.
type Service struct {
	users   UserStore
	tracker EventTracker
	tokens  *JWTManager
	hasher  *PasswordHasher
}

func NewService(users UserStore, tracker EventTracker, tokens *JWTManager, hasher *PasswordHasher) *Service {
	return &Service{users: users, tracker: tracker, tokens: tokens, hasher: hasher}
}

// Tokens exposes the verifier shared with the websocket gate.
func (s *Service) Tokens() *JWTManager {
	return s.tokens
}

// Register creates a password account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	email := normalizeEmail(in.Email)

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: email, Password: &hash, Name: strings.TrimSpace(in.Name)}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.track(ctx, models.EventUserRegistered, user.ID, map[string]any{"email": user.Email})
	return user, token, nil
}

// Login checks the password and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, string, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup email: %w", err)
	}

	if !user.HasPassword() {
		return nil, "", ErrPasswordLogin
	}
	if !s.hasher.Verify(in.Password, *user.Password) {
		return nil, "", ErrInvalidCredentials
	}
	if user.IsBlocked {
		return nil, "", ErrUserBlocked
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.track(ctx, models.EventUserLogin, user.ID, nil)
	if s.tracker != nil {
		now := time.Now().UTC()
		session := models.UserSession{
			UserID:    user.ID,
			IPAddress: in.IPAddress,
			UserAgent: in.UserAgent,
			CreatedAt: now,
			ExpiresAt: now.Add(s.tokens.TTL()),
		}
		if err := s.tracker.RecordSession(ctx, session); err != nil {
			log.Printf("WARNING: failed to record session for user %s: %v", user.ID, err)
		}
	}
	return user, token, nil
}

// Logout only records the event; tokens are dropped client-side.
func (s *Service) Logout(ctx context.Context, userID string) error {
	s.track(ctx, models.EventUserLogout, userID, nil)
	return nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.IsBlocked {
		return nil, ErrUserBlocked
	}
	return user, nil
}

func (s *Service) track(ctx context.Context, eventType, userID string, metadata map[string]any) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Track(ctx, eventType, userID, metadata); err != nil {
		log.Printf("WARNING: failed to track %s for user %s: %v", eventType, userID, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
