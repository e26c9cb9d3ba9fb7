package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"pulse/backend/internal/api/middleware"
	"pulse/backend/internal/models"
	"pulse/backend/internal/posts"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type postURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type createPostRequest struct {
	Title   string   `json:"title" binding:"required,min=1,max=255"`
	Content string   `json:"content"`
	Tags    []string `json:"tags" binding:"omitempty,max=10,dive,min=1,max=32"`
}

type updatePostRequest struct {
	Title   *string  `json:"title" binding:"omitnil,min=1,max=255"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags" binding:"omitempty,max=10,dive,min=1,max=32"`
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// queryInt parses a positive integer query parameter, falling back on
// anything else.
func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func setCacheHeader(c *gin.Context, hit bool) {
	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
}

func (h *Handler) ListPosts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)

	result, hit, err := h.posts.List(c.Request.Context(), page, limit, c.Query("tag"))
	if err != nil {
		h.internalError(c, err, "Failed to fetch posts")
		return
	}

	items := result.Posts
	if items == nil {
		items = []models.Post{}
	}
	setCacheHeader(c, hit)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": pagination{
			Page:       page,
			Limit:      limit,
			Total:      result.Total,
			TotalPages: int(math.Ceil(float64(result.Total) / float64(limit))),
		},
	})
}

func (h *Handler) GetPost(c *gin.Context) {
	var uri postURI
	if err := c.ShouldBindUri(&uri); err != nil {
		validationFailed(c, err)
		return
	}

	post, hit, err := h.posts.Get(c.Request.Context(), uri.ID)
	if errors.Is(err, posts.ErrNotFound) {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.internalError(c, err, "Failed to fetch post")
		return
	}

	setCacheHeader(c, hit)
	ok(c, http.StatusOK, post)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	post, err := h.posts.Create(c.Request.Context(), user.ID, posts.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		h.internalError(c, err, "Failed to create post")
		return
	}
	ok(c, http.StatusCreated, post)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	var uri postURI
	if err := c.ShouldBindUri(&uri); err != nil {
		validationFailed(c, err)
		return
	}
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	post, err := h.posts.Update(c.Request.Context(), user.ID, uri.ID, models.PostUpdate{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if h.postError(c, err, "Failed to update post") {
		return
	}
	ok(c, http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	var uri postURI
	if err := c.ShouldBindUri(&uri); err != nil {
		validationFailed(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	err := h.posts.Delete(c.Request.Context(), user.ID, uri.ID)
	if h.postError(c, err, "Failed to delete post") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully"})
}

// postError writes the response for a failed mutation and reports whether it did.
func (h *Handler) postError(c *gin.Context, err error, msg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, posts.ErrNotFound):
		fail(c, http.StatusNotFound, "Post not found")
	case errors.Is(err, posts.ErrForbidden):
		fail(c, http.StatusForbidden, "Not authorized")
	default:
		h.internalError(c, err, msg)
	}
	return true
}
