package mysql

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
)

const (
	getLockSQL     = `SELECT GET_LOCK(?, ?)`
	releaseLockSQL = `SELECT RELEASE_LOCK(?)`

	// maxLockName is the MySQL limit on user lock names.
	maxLockName = 64

	lockPollSeconds = 1
	unlockTimeout   = 2 * time.Second
)

var _ cart.Locker = (*NamedLocker)(nil)

// NamedLocker serializes callers across replicas with GET_LOCK user locks.
// Each held lock pins one connection from the pool, so the pool must not be
// shared with the stores the lock guards: a caller holding the lock still
// needs store connections to finish its work.
type NamedLocker struct {
	db        *sql.DB
	namespace string
}

// NewNamedLocker returns a locker whose names are prefixed by namespace.
// sqlDB must be dedicated to the locker.
func NewNamedLocker(sqlDB *sql.DB, namespace string) *NamedLocker {
	return &NamedLocker{db: sqlDB, namespace: namespace}
}

// Lock polls GET_LOCK until the lock for key is held or ctx is done.
func (l *NamedLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := lockName(l.namespace + key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock connection: %w", err)
	}

	for {
		var acquired sql.NullInt64
		if err := conn.QueryRowContext(ctx, getLockSQL, name, lockPollSeconds).Scan(&acquired); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("acquiring named lock: %w", err)
		}
		if acquired.Valid && acquired.Int64 == 1 {
			break
		}
		if err := ctx.Err(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		var released sql.NullInt64
		err := conn.QueryRowContext(unlockCtx, releaseLockSQL, name).Scan(&released)
		if err != nil || !released.Valid || released.Int64 != 1 {
			zctx.From(ctx).Warn("Named lock release failed, discarding connection",
				zap.String("key", key), zap.Error(err))
			// A bad connection is dropped by the pool, which ends the session
			// and frees its locks.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}, nil
}

// lockName keeps names within the MySQL length limit.
func lockName(key string) string {
	if len(key) <= maxLockName {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
