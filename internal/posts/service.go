// Package posts implements the post CRUD operations behind a Redis
// cache-aside layer.
package posts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pulse/backend/internal/config"
	"pulse/backend/internal/models"
	"pulse/backend/internal/storage"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound  = errors.New("post not found")
	ErrForbidden = errors.New("not authorized to modify this post")
)

const listKeyPattern = "posts:*"

// Repository is the relational side. *storage.PostRepository implements it.
type Repository interface {
	ListPosts(ctx context.Context, offset, limit int, tag string) ([]models.Post, int64, error)
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, id string, upd models.PostUpdate) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// Cache is the JSON cache. *storage.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Notifier pushes server-originated envelopes to connected clients.
// *chathub.Hub implements it.
type Notifier interface {
	EmitToAll(env models.Envelope) int
}

// Page is one page of posts plus the total count across all pages.
type Page struct {
	Posts []models.Post `json:"posts"`
	Total int64         `json:"total"`
}

type CreateInput struct {
	Title   string
	Content string
	Tags    []string
}

type Service struct {
	repo     Repository
	cache    Cache
	notifier Notifier
	sfGroup  singleflight.Group
}

func NewService(repo Repository, cache Cache, notifier Notifier) *Service {
	return &Service{repo: repo, cache: cache, notifier: notifier}
}

func listKey(page, limit int, tag string) string {
	key := fmt.Sprintf("posts:page:%d:limit:%d", page, limit)
	if tag != "" {
		key += ":tag:" + tag
	}
	return key
}

func postKey(id string) string {
	return "post:" + id
}

// List returns a newest-first page. cached reports a cache hit.
func (s *Service) List(ctx context.Context, page, limit int, tag string) (Page, bool, error) {
	tag = strings.TrimSpace(tag)
	key := listKey(page, limit, tag)

	var cached Page
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[posts] Cache error for %s: %v", key, err)
	}
	if found {
		return cached, true, nil
	}

	items, total, err := s.repo.ListPosts(ctx, (page-1)*limit, limit, tag)
	if err != nil {
		return Page{}, false, fmt.Errorf("list posts: %w", err)
	}
	result := Page{Posts: items, Total: total}

	if err := s.cache.Set(ctx, key, result, config.PostListTTL); err != nil {
		log.Printf("[posts] Warning: failed to cache %s: %v", key, err)
	}
	return result, false, nil
}

// Get returns a single post. Concurrent misses for the same id share one
// database query.
func (s *Service) Get(ctx context.Context, id string) (*models.Post, bool, error) {
	key := postKey(id)

	var cached models.Post
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[posts] Cache error for %s: %v", key, err)
	}
	if found {
		return &cached, true, nil
	}

	val, err, _ := s.sfGroup.Do(key, func() (any, error) {
		return s.repo.FindPostByID(ctx, id)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("find post: %w", err)
	}
	post := val.(*models.Post)

	if err := s.cache.Set(ctx, key, post, config.PostTTL); err != nil {
		log.Printf("[posts] Warning: failed to cache %s: %v", key, err)
	}
	return post, false, nil
}

// Create stores a post, drops the cached lists and tells every connected
// client about it.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*models.Post, error) {
	post := &models.Post{
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Tags:     in.Tags,
		AuthorID: authorID,
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.invalidate(ctx, "")

	if s.notifier != nil {
		s.notifier.EmitToAll(models.NewEnvelope(models.EventNotification, models.NotificationPayload{
			Message: fmt.Sprintf("New post: %s", post.Title),
		}, ""))
	}
	log.Printf("[posts] Created post %s by %s", post.ID, authorID)
	return post, nil
}

// Update applies upd when userID owns the post.
func (s *Service) Update(ctx context.Context, userID, id string, upd models.PostUpdate) (*models.Post, error) {
	if err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}

	post, err := s.repo.UpdatePost(ctx, id, upd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	s.invalidate(ctx, id)
	return post, nil
}

// Delete removes the post when userID owns it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.authorize(ctx, userID, id); err != nil {
		return err
	}

	err := s.repo.DeletePost(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.invalidate(ctx, id)
	log.Printf("[posts] Deleted post %s", id)
	return nil
}

// authorize reads through to the database; ownership is never decided from
// a cached copy.
func (s *Service) authorize(ctx context.Context, userID, id string) error {
	post, err := s.repo.FindPostByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find post: %w", err)
	}
	if post.AuthorID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if id != "" {
		if err := s.cache.Delete(ctx, postKey(id)); err != nil {
			log.Printf("[posts] Warning: failed to invalidate %s: %v", postKey(id), err)
		}
	}
	if err := s.cache.DeletePattern(ctx, listKeyPattern); err != nil {
		log.Printf("[posts] Warning: failed to invalidate post lists: %v", err)
	}
}
