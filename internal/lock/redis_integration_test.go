//go:build integration

package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedis(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	t.Run("mutual exclusion", func(t *testing.T) {
		l := NewRedis(client, RedisConfig{RetryInterval: time.Millisecond})
		var (
			inside  atomic.Int32
			maxSeen atomic.Int32
			wg      sync.WaitGroup
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "owner")
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
		assert.Zero(t, client.Exists(ctx, "foodcart:lock:cart:owner").Val())
	})

	t.Run("expired lease is not released by old holder", func(t *testing.T) {
		l := NewRedis(client, RedisConfig{TTL: 50 * time.Millisecond, RetryInterval: 5 * time.Millisecond})

		unlockOld, err := l.Lock(ctx, "lease")
		require.NoError(t, err)
		time.Sleep(80 * time.Millisecond)

		unlockNew, err := l.Lock(ctx, "lease")
		require.NoError(t, err)

		unlockOld()
		assert.Equal(t, int64(1), client.Exists(ctx, "foodcart:lock:cart:lease").Val())
		unlockNew()
		assert.Zero(t, client.Exists(ctx, "foodcart:lock:cart:lease").Val())
	})

	t.Run("context cancel", func(t *testing.T) {
		l := NewRedis(client, RedisConfig{})
		unlock, err := l.Lock(ctx, "busy")
		require.NoError(t, err)
		defer unlock()

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = l.Lock(waitCtx, "busy")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, NewRedis(client, RedisConfig{}).Ping(ctx))
	})
}
