// Package handler implements the gin handlers of the REST API and the
// websocket endpoint.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"pulse/backend/internal/api/middleware"
	"pulse/backend/internal/auth"
	"pulse/backend/internal/chathub"
	"pulse/backend/internal/models"
	"pulse/backend/internal/posts"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

type AccountService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, in auth.LoginInput) (*models.User, string, error)
	Logout(ctx context.Context, userID string) error
}

type PostService interface {
	List(ctx context.Context, page, limit int, tag string) (posts.Page, bool, error)
	Get(ctx context.Context, id string) (*models.Post, bool, error)
	Create(ctx context.Context, authorID string, in posts.CreateInput) (*models.Post, error)
	Update(ctx context.Context, userID, id string, upd models.PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, userID, id string) error
}

type HistoryReader interface {
	Recent(ctx context.Context, n int64) ([]models.Envelope, error)
	Limit() int64
}

type PresenceReader interface {
	Online(ctx context.Context) ([]string, error)
	Get(ctx context.Context, userID string) (models.PresenceRecord, error)
}

// Deps are the collaborators of Handler. Sessions and Gate may be nil when
// the websocket endpoint is not served.
type Deps struct {
	Accounts AccountService
	Posts    PostService
	History  HistoryReader
	Presence PresenceReader
	Gate     *chathub.Gate
	Sessions *chathub.Orchestrator

	// AllowedOrigin is the front-end origin accepted on websocket upgrades.
	AllowedOrigin string
	// Development exposes internal error messages to clients.
	Development bool
}

type Handler struct {
	accounts AccountService
	posts    PostService
	history  HistoryReader
	presence PresenceReader
	gate     *chathub.Gate
	sessions *chathub.Orchestrator

	upgrader    websocket.Upgrader
	development bool
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		accounts:    d.Accounts,
		posts:       d.Posts,
		history:     d.History,
		presence:    d.Presence,
		gate:        d.Gate,
		sessions:    d.Sessions,
		development: d.Development,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || d.Development || origin == d.AllowedOrigin
		},
	}
	return h
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter, authn middleware.Authenticator) {
	requireAuth := middleware.RequireAuth(authn)
	optionalAuth := middleware.OptionalAuth(authn)

	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", requireAuth, h.Me)
	authGroup.POST("/logout", requireAuth, h.Logout)

	postGroup := api.Group("/posts")
	postGroup.GET("", optionalAuth, h.ListPosts)
	postGroup.GET("/:id", h.GetPost)
	postGroup.POST("", requireAuth, h.CreatePost)
	postGroup.PUT("/:id", requireAuth, h.UpdatePost)
	postGroup.DELETE("/:id", requireAuth, h.DeletePost)

	api.GET("/chat/history", requireAuth, h.ChatHistory)
	api.GET("/presence/online", requireAuth, h.OnlineUsers)
	api.GET("/users/:id/presence", requireAuth, h.UserPresence)
}

// Health reports liveness and the number of live websocket connections.
func (h *Handler) Health(c *gin.Context) {
	connections := 0
	if h.sessions != nil {
		connections = h.sessions.Hub().Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"connections": connections,
	})
}

// NotFound is the fallback for unknown routes.
func NotFound(c *gin.Context) {
	fail(c, http.StatusNotFound, "Not found")
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// internalError logs err and answers 500; the cause is only shown in
// development.
func (h *Handler) internalError(c *gin.Context, err error, msg string) {
	log.Printf("ERROR: %s: %v", msg, err)
	if h.development {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	fail(c, http.StatusInternalServerError, msg)
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationFailed answers 400 with one entry per failed field.
func validationFailed(c *gin.Context, err error) {
	var details []fieldError
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Field(), Message: describe(fe)})
		}
	} else {
		details = append(details, fieldError{Field: "body", Message: err.Error()})
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Validation failed", "details": details})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid " + fe.Field()
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
