package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, user_id, key_hash, name, scopes
		FROM api_keys WHERE key_hash = $1 AND active = TRUE`

	createAPIKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, scopes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_hash) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name,
			scopes = EXCLUDED.scopes, active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.pool.QueryRow(ctx, getAPIKeyByHashSQL, hash).Scan(
		&info.ID, &info.UserID, &info.KeyHash, &info.Name, &info.Scopes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}

// Create stores info, re-activating an existing key with the same hash.
func (r *APIKeyRepository) Create(ctx context.Context, info *auth.APIKeyInfo) error {
	scopes := info.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := r.pool.Exec(ctx, createAPIKeySQL, info.ID, info.UserID, info.KeyHash, info.Name, scopes)
	if err != nil {
		return fmt.Errorf("creating api key %q: %w", info.Name, err)
	}
	return nil
}
