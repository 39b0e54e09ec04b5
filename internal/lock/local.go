// Package lock provides per-key mutual exclusion used to serialize cart
// find-or-create sequences per owner.
package lock

import (
	"context"
	"sync"

	"github.com/xenking/foodcart/internal/domain/cart"
)

var _ cart.Locker = (*Local)(nil)

// Local is an in-process keyed mutex. It only serializes callers inside one
// process; multi-replica deployments need Redis or the database locker.
type Local struct {
	mu   sync.Mutex
	keys map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty keyed mutex.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*localEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

// release drops one reference and forgets the key once nobody waits on it.
func (l *Local) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
