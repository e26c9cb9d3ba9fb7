package chathub

import (
	"errors"
	"net/http"
	"strings"

	"pulse/backend/internal/auth"
)

var ErrMissingToken = errors.New("authentication required")

// Identity is what an accepted connection attempt resolves to.
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier validates a bearer credential. *auth.JWTManager implements it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Gate accepts or rejects a connection attempt before the upgrade. It does
// not touch shared state.
type Gate struct {
	verifier TokenVerifier
}

func NewGate(verifier TokenVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authenticate reads the token from the Authorization header, falling back to
// the token query parameter, and verifies it.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// TokenFromRequest extracts a bearer token; empty when none is present.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
