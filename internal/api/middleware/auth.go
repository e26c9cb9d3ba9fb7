// Package middleware holds the gin middleware of the REST API.
package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"pulse/backend/internal/auth"
	"pulse/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	userKey   = "user"
	userIDKey = "userID"
)

// Authenticator resolves a bearer token to an active user. *auth.Service
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth rejects requests without a valid bearer token for an existing,
// unblocked user.
func RequireAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "No token provided")
			return
		}

		user, err := authn.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrInvalidToken):
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		case errors.Is(err, auth.ErrUserNotFound):
			abort(c, http.StatusUnauthorized, "User not found")
			return
		case errors.Is(err, auth.ErrUserBlocked):
			abort(c, http.StatusForbidden, "User is blocked")
			return
		default:
			log.Printf("ERROR: authentication failed: %v", err)
			abort(c, http.StatusInternalServerError, "Authentication error")
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and never
// rejects.
func OptionalAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(userKey, user)
				c.Set(userIDKey, user.ID)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by RequireAuth or OptionalAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
