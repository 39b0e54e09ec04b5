package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Manager owns the per-user cart lifecycle. Every mutation follows the same
// shape: fetch-or-create under the owner lock, compute the new membership and
// write only when it differs from what the store already holds.
type Manager struct {
	store Store
	locks Locker
}

// NewManager creates a Manager over the given store and per-owner locker.
func NewManager(store Store, locks Locker) *Manager {
	return &Manager{
		store: store,
		locks: locks,
	}
}

// Get returns the owner's cart without creating one. Owners with no stored
// cart get an empty, unsaved cart.
func (m *Manager) Get(ctx context.Context, owner string) (*Cart, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	c, err := m.store.FindByOwner(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return &Cart{Owner: owner, Dishes: []string{}}, nil
	}
	if err != nil {
		return nil, storeError("get cart", err)
	}
	return c, nil
}

// FindOrCreate returns the owner's cart, creating an empty one if needed.
func (m *Manager) FindOrCreate(ctx context.Context, owner string) (*Cart, error) {
	return m.apply(ctx, "find or create cart", owner, nil, nil)
}

// AddDish adds dishID to the owner's cart. Adding a dish that is already
// present leaves the cart untouched.
func (m *Manager) AddDish(ctx context.Context, owner, dishID string) (*Cart, error) {
	return m.apply(ctx, "add dish to cart", owner, []string{dishID}, func(c *Cart) ([]string, bool) {
		if c.Contains(dishID) {
			return nil, false
		}
		return append(slices.Clone(c.Dishes), dishID), true
	})
}

// RemoveDish removes dishID from the owner's cart. Removing an absent dish
// is a no-op.
func (m *Manager) RemoveDish(ctx context.Context, owner, dishID string) (*Cart, error) {
	return m.apply(ctx, "remove dish from cart", owner, nil, func(c *Cart) ([]string, bool) {
		if !c.Contains(dishID) {
			return nil, false
		}
		return slices.DeleteFunc(slices.Clone(c.Dishes), func(d string) bool {
			return d == dishID
		}), true
	})
}

// Clear empties the owner's cart.
func (m *Manager) Clear(ctx context.Context, owner string) (*Cart, error) {
	return m.apply(ctx, "clear cart", owner, nil, func(c *Cart) ([]string, bool) {
		return []string{}, len(c.Dishes) > 0
	})
}

// apply runs change against the owner's cart while holding the owner lock.
// seed is the dish set a freshly created cart starts with; change is only
// consulted for carts that already existed.
func (m *Manager) apply(
	ctx context.Context,
	op, owner string,
	seed []string,
	change func(c *Cart) ([]string, bool),
) (*Cart, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}

	unlock, err := m.locks.Lock(ctx, owner)
	if err != nil {
		return nil, storeError(op, errors.Wrap(err, "acquire owner lock"))
	}
	defer unlock()

	c, created, err := m.findOrCreate(ctx, owner, seed)
	if err != nil {
		return nil, storeError(op, err)
	}
	if created || change == nil {
		return c, nil
	}

	dishes, changed := change(c)
	if !changed {
		return c, nil
	}

	updated, err := m.store.SetDishes(ctx, c.ID, normalize(dishes))
	if err != nil {
		return nil, storeError(op, err)
	}
	zctx.From(ctx).Debug("Cart updated",
		zap.String("cart_id", updated.ID),
		zap.String("owner", owner),
		zap.Int("dishes", len(updated.Dishes)),
	)
	return updated, nil
}

// findOrCreate loads the owner's cart or creates it with seed. A unique
// violation on create means another writer won the race; its cart is used.
func (m *Manager) findOrCreate(ctx context.Context, owner string, seed []string) (*Cart, bool, error) {
	c, err := m.store.FindByOwner(ctx, owner)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, errors.Wrap(err, "find cart")
	}

	c, err = m.store.Create(ctx, owner, normalize(seed))
	switch {
	case err == nil:
		zctx.From(ctx).Debug("Cart created",
			zap.String("cart_id", c.ID),
			zap.String("owner", owner),
		)
		return c, true, nil
	case errors.Is(err, ErrCartExists):
		c, err = m.store.FindByOwner(ctx, owner)
		if err != nil {
			return nil, false, errors.Wrap(err, "find cart after conflict")
		}
		return c, false, nil
	default:
		return nil, false, errors.Wrap(err, "create cart")
	}
}

// storeError tags collaborator failures as ErrStoreUnavailable unless they
// carry a more specific meaning.
func storeError(op string, err error) error {
	var dishErr *InvalidDishError
	switch {
	case errors.As(err, &dishErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, op)
	default:
		return errors.Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), op)
	}
}
