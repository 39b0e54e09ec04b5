package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/foodcart/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

type cartRow struct {
	id        string
	owner     string
	dishes    []string
	updatedAt time.Time
}

func (r *cartRow) toDomain() *cart.Cart {
	return &cart.Cart{
		ID:        r.id,
		Owner:     r.owner,
		Dishes:    slices.Clone(r.dishes),
		UpdatedAt: r.updatedAt,
	}
}

// CartStore implements cart.Store in memory.
type CartStore struct {
	s *Store
}

// FindByOwner returns the owner's cart or cart.ErrNotFound.
func (c *CartStore) FindByOwner(_ context.Context, owner string) (*cart.Cart, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	id, ok := c.s.cartByOwner[owner]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c.s.carts[id].toDomain(), nil
}

// Create inserts a cart, enforcing one cart per owner.
func (c *CartStore) Create(_ context.Context, owner string, dishes []string) (*cart.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, exists := c.s.cartByOwner[owner]; exists {
		return nil, cart.ErrCartExists
	}
	if err := c.s.checkDishesLocked(dishes); err != nil {
		return nil, err
	}

	row := &cartRow{
		id:        uuid.NewString(),
		owner:     owner,
		dishes:    append([]string{}, dishes...),
		updatedAt: c.s.now().UTC(),
	}
	c.s.carts[row.id] = row
	c.s.cartByOwner[owner] = row.id
	return row.toDomain(), nil
}

// SetDishes replaces the dish set of an existing cart.
func (c *CartStore) SetDishes(_ context.Context, id string, dishes []string) (*cart.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	row, ok := c.s.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	if err := c.s.checkDishesLocked(dishes); err != nil {
		return nil, err
	}
	row.dishes = append([]string{}, dishes...)
	row.updatedAt = c.s.now().UTC()
	return row.toDomain(), nil
}

// Count returns the number of stored carts.
func (c *CartStore) Count() int {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return len(c.s.carts)
}

func (s *Store) checkDishesLocked(dishes []string) error {
	if !s.validateDishes {
		return nil
	}
	for _, d := range dishes {
		if _, ok := s.dishes[d]; !ok {
			return &cart.InvalidDishError{DishID: d}
		}
	}
	return nil
}
