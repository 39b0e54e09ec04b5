package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/go-faster/errors"
)

// Authenticator resolves raw API keys to identities.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given key repository
// and HMAC pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate hashes rawKey, looks it up and compares the stored hash in
// constant time. Lookup misses and mismatches both yield ErrNotAuthenticated;
// other repository failures wrap ErrStoreUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (Identity, error) {
	if rawKey == "" {
		return Identity{}, ErrNotAuthenticated
	}
	hexHash := HashKey(a.pepper, rawKey)

	info, err := a.keys.FindByHash(ctx, hexHash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Identity{}, ErrNotAuthenticated
		}
		return Identity{}, errors.Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), "find api key")
	}

	computed, _ := hex.DecodeString(hexHash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
		return Identity{}, ErrNotAuthenticated
	}
	if info.UserID == "" {
		return Identity{}, ErrNotAuthenticated
	}

	return Identity{
		UserID: info.UserID,
		KeyID:  info.ID,
		Scopes: info.Scopes,
	}, nil
}
