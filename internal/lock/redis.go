package lock

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
)

// releaseScript deletes the lock only if it is still held by the caller's
// token, so an expired lease never releases somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var _ cart.Locker = (*Redis)(nil)

// RedisConfig tunes the Redis lease lock.
type RedisConfig struct {
	// Prefix is prepended to every lock key.
	Prefix string
	// TTL bounds how long a crashed holder can block other callers.
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

// Redis is a lease lock built on SET NX PX with token-checked release.
type Redis struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedis creates a Redis lock. Zero config fields get defaults.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "foodcart:lock:cart:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{client: client, cfg: cfg}
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.cfg.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "redis setnx %s", redisKey)
		}
		if ok {
			return r.unlockFunc(ctx, redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlockFunc(ctx context.Context, redisKey, token string) func() {
	lg := zctx.From(ctx)
	return func() {
		// The request context may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			lg.Warn("Release redis lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}

// Ping reports whether Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
