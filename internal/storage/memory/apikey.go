package memory

import (
	"context"
	"slices"

	"github.com/xenking/foodcart/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository in memory.
type APIKeyRepository struct {
	s *Store
}

// FindByHash returns the key stored under hash or auth.ErrKeyNotFound.
func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	info, ok := r.s.apikeys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	info.Scopes = slices.Clone(info.Scopes)
	return &info, nil
}

// Create stores info keyed by its hash.
func (r *APIKeyRepository) Create(_ context.Context, info *auth.APIKeyInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *info
	cp.Scopes = slices.Clone(info.Scopes)
	r.s.apikeys[info.KeyHash] = cp
	return nil
}
