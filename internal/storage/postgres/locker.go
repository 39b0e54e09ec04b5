package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
)

const (
	advisoryLockSQL   = `SELECT pg_advisory_lock(hashtextextended($1, 0))`
	advisoryUnlockSQL = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`

	unlockTimeout = 2 * time.Second
)

var _ cart.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker serializes callers across replicas with session-level
// advisory locks. Each held lock pins one pooled connection, so the pool must
// not be shared with the stores the lock guards: a caller holding the lock
// still needs store connections to finish its work.
type AdvisoryLocker struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewAdvisoryLocker returns a locker whose keys are prefixed by namespace.
// pool must be dedicated to the locker.
func NewAdvisoryLocker(pool *pgxpool.Pool, namespace string) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, namespace: namespace}
}

// Lock blocks until the advisory lock for key is held.
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.namespace + key

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock connection: %w", err)
	}
	if _, err := conn.Exec(ctx, advisoryLockSQL, lockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquiring advisory lock: %w", err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		var released bool
		err := conn.QueryRow(unlockCtx, advisoryUnlockSQL, lockKey).Scan(&released)
		if err != nil || !released {
			// Closing the session drops every lock it holds.
			zctx.From(ctx).Warn("Advisory unlock failed, closing connection",
				zap.String("key", key), zap.Bool("released", released), zap.Error(err))
			_ = conn.Hijack().Close(unlockCtx)
			return
		}
		conn.Release()
	}, nil
}
