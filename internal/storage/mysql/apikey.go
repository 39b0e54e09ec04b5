package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, user_id, key_hash, name, scopes
		FROM api_keys WHERE key_hash = ? AND active = TRUE`

	createAPIKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, scopes)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), name = VALUES(name),
			scopes = VALUES(scopes), active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by MySQL.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository returns an APIKeyRepository that uses sqlDB.
func NewAPIKeyRepository(sqlDB *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: sqlDB}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var (
		info       auth.APIKeyInfo
		scopesJSON []byte
	)
	err := r.db.QueryRowContext(ctx, getAPIKeyByHashSQL, hash).Scan(
		&info.ID, &info.UserID, &info.KeyHash, &info.Name, &scopesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	scopes, err := decodeStrings(scopesJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding api key scopes: %w", err)
	}
	info.Scopes = scopes
	return &info, nil
}

// Create stores info, re-activating an existing key with the same hash.
func (r *APIKeyRepository) Create(ctx context.Context, info *auth.APIKeyInfo) error {
	if _, err := r.db.ExecContext(ctx, createAPIKeySQL, info.ID, info.UserID, info.KeyHash, info.Name, encodeStrings(info.Scopes)); err != nil {
		return fmt.Errorf("creating api key %q: %w", info.Name, err)
	}
	return nil
}
