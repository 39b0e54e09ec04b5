package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository in memory.
type OrderRepository struct {
	s *Store
}

// Create stores a copy of o.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[o.ID]; exists {
		return errors.Errorf("order %s already exists", o.ID)
	}
	cp := *o
	cp.Dishes = slices.Clone(o.Dishes)
	r.s.orders[o.ID] = cp
	return nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(_ context.Context, owner string) ([]order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]order.Order, 0)
	for _, o := range r.s.orders {
		if o.Owner != owner {
			continue
		}
		o.Dishes = slices.Clone(o.Dishes)
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}
