package app

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/restaurant"
	"github.com/xenking/foodcart/internal/lock"
	"github.com/xenking/foodcart/internal/storage/memory"
	"github.com/xenking/foodcart/internal/storage/mysql"
	"github.com/xenking/foodcart/internal/storage/postgres"
	"github.com/xenking/foodcart/pkg/health"
)

const (
	lockNamespace    = "foodcart:cart:"
	defaultLockConns = 8
)

// backend is the set of repositories behind one database client.
type backend struct {
	carts       cart.Store
	orders      order.Repository
	restaurants restaurant.Repository
	apikeys     auth.Repository

	// nativeLock is the owner lock that needs no extra infrastructure.
	nativeLock cart.Locker
	// pgPool and sqlDB are set for the client in use. The lock variants back
	// nativeLock and are never handed to a store.
	pgPool     *pgxpool.Pool
	pgLockPool *pgxpool.Pool
	sqlDB      *sql.DB
	sqlLockDB  *sql.DB
}

// Ping checks the database connection. The memory client is always up.
func (b *backend) Ping(ctx context.Context) error {
	switch {
	case b.pgPool != nil:
		return b.pgPool.Ping(ctx)
	case b.sqlDB != nil:
		return b.sqlDB.PingContext(ctx)
	default:
		return nil
	}
}

func (b *backend) Close() error {
	switch {
	case b.pgPool != nil:
		b.pgLockPool.Close()
		b.pgPool.Close()
	case b.sqlDB != nil:
		return errors.Join(b.sqlLockDB.Close(), b.sqlDB.Close())
	}
	return nil
}

func lockConns(cfg DatabaseConfig) int {
	if cfg.LockConns > 0 {
		return cfg.LockConns
	}
	return defaultLockConns
}

// openBackend connects to the configured database and applies the schema.
func openBackend(ctx context.Context, lg *zap.Logger, cfg DatabaseConfig) (*backend, error) {
	switch cfg.Client {
	case ClientPostgres:
		pool, err := postgres.NewPool(ctx, cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "create postgres pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lockPool, err := postgres.NewPool(ctx, cfg.URL, postgres.WithMaxConns(int32(lockConns(cfg))))
		if err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "create lock pool")
		}
		return &backend{
			carts:       postgres.NewCartStore(pool),
			orders:      postgres.NewOrderRepository(pool),
			restaurants: postgres.NewRestaurantRepository(pool),
			apikeys:     postgres.NewAPIKeyRepository(pool),
			nativeLock:  postgres.NewAdvisoryLocker(lockPool, lockNamespace),
			pgPool:      pool,
			pgLockPool:  lockPool,
		}, nil
	case ClientMySQL:
		sqlDB, err := mysql.Open(ctx, cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "open mysql")
		}
		if err := mysql.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lockDB, err := mysql.Open(ctx, cfg.URL, mysql.WithMaxOpenConns(lockConns(cfg)))
		if err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "open mysql lock pool")
		}
		return &backend{
			carts:       mysql.NewCartStore(sqlDB),
			orders:      mysql.NewOrderRepository(sqlDB),
			restaurants: mysql.NewRestaurantRepository(sqlDB),
			apikeys:     mysql.NewAPIKeyRepository(sqlDB),
			nativeLock:  mysql.NewNamedLocker(lockDB, lockNamespace),
			sqlDB:       sqlDB,
			sqlLockDB:   lockDB,
		}, nil
	case ClientMemory:
		lg.Warn("Using in-memory store, data is lost on restart")
		store := memory.NewStore(memory.WithDishValidation())
		return &backend{
			carts:       store.Carts(),
			orders:      store.Orders(),
			restaurants: store.Restaurants(),
			apikeys:     store.APIKeys(),
			nativeLock:  lock.NewLocal(),
		}, nil
	default:
		return nil, errors.Errorf("unknown database client %q", cfg.Client)
	}
}

// ownerLock is the selected cart.Locker plus the resources it owns.
type ownerLock struct {
	cart.Locker
	// check is non-nil when the lock depends on its own service.
	check health.CheckFunc
	close func() error
}

// openOwnerLock builds the lock named by cfg.Backend. LockAuto and the
// database-specific backends reuse the backend's native lock.
func openOwnerLock(cfg LockConfig, b *backend) (*ownerLock, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case LockAuto, LockPostgres, LockMySQL:
		return &ownerLock{Locker: b.nativeLock, close: noop}, nil
	case LockLocal:
		return &ownerLock{Locker: lock.NewLocal(), close: noop}, nil
	case LockRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		l := lock.NewRedis(client, lock.RedisConfig{TTL: cfg.TTL})
		return &ownerLock{
			Locker: l,
			check:  health.PingCheck(l),
			close:  client.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// Repositories gives offline tools access to the catalog and API keys.
type Repositories struct {
	Restaurants restaurant.Repository
	APIKeys     auth.Repository

	b *backend
}

// OpenRepositories connects to the database described by cfg and applies
// the schema.
func OpenRepositories(ctx context.Context, lg *zap.Logger, cfg DatabaseConfig) (*Repositories, error) {
	b, err := openBackend(ctx, lg, cfg)
	if err != nil {
		return nil, err
	}
	return &Repositories{Restaurants: b.restaurants, APIKeys: b.apikeys, b: b}, nil
}

// Close releases the database connection.
func (r *Repositories) Close() error { return r.b.Close() }
