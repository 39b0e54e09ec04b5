package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// Scopes granted to API keys.
const (
	ScopeUser  = "user"
	ScopeAdmin = "admin"
)

var (
	// ErrNotAuthenticated is returned when a request carries no valid identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when an identity lacks the required scope.
	ErrForbidden = errors.New("forbidden")
	// ErrKeyNotFound is returned by Repository.FindByHash for unknown keys.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrStoreUnavailable marks a failed API key lookup.
	ErrStoreUnavailable = errors.New("api key store unavailable")
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	UserID  string
	KeyHash string
	Name    string
	Scopes  []string
}

// Identity is the verified caller handed to the cart and order services.
type Identity struct {
	UserID string
	KeyID  string
	Scopes []string
}

// HasScope reports whether the identity was granted scope.
func (i Identity) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Create(ctx context.Context, info *APIKeyInfo) error
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
