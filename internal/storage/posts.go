package storage

import (
	"context"

	"pulse/backend/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostRepository persists posts in the relational store.
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// ListPosts returns a newest-first page of posts with their authors, and the
// total number of posts matching the filter. An empty tag matches all posts.
func (r *PostRepository) ListPosts(ctx context.Context, offset, limit int, tag string) ([]models.Post, int64, error) {
	filtered := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.Post{})
		if tag != "" {
			query = query.Where("? = ANY(tags)", tag)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := make([]models.Post, 0, limit)
	err := filtered().Preload("Author").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) FindPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &post, nil
}

func (r *PostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return translateGormError(r.db.WithContext(ctx).Create(post).Error)
}

// UpdatePost applies the non-nil fields of upd and returns the stored post.
func (r *PostRepository) UpdatePost(ctx context.Context, id string, upd models.PostUpdate) (*models.Post, error) {
	changes := map[string]any{}
	if upd.Title != nil {
		changes["title"] = *upd.Title
	}
	if upd.Content != nil {
		changes["content"] = *upd.Content
	}
	if upd.Tags != nil {
		changes["tags"] = pq.StringArray(upd.Tags)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&post).Updates(changes).Error
	})
	if err != nil {
		return nil, translateGormError(err)
	}
	return r.FindPostByID(ctx, id)
}

func (r *PostRepository) DeletePost(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
