package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned by Store.FindByOwner when the owner has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrCartExists is returned by Store.Create when a cart for the owner was
	// created concurrently.
	ErrCartExists = errors.New("cart already exists for owner")
	// ErrStoreUnavailable marks a failed read or write against the cart store.
	ErrStoreUnavailable = errors.New("cart store unavailable")
	// ErrInvalidOwner is returned for an empty owner identity.
	ErrInvalidOwner = errors.New("cart owner required")
)

// InvalidDishError indicates the store could not resolve a dish reference.
type InvalidDishError struct {
	DishID string
}

func (e *InvalidDishError) Error() string {
	if e.DishID == "" {
		return "invalid dish reference"
	}
	return "invalid dish reference " + e.DishID
}

// Cart is the single shopping cart of one user. Dishes has set semantics.
type Cart struct {
	ID        string
	Owner     string
	Dishes    []string
	UpdatedAt time.Time
}

// Contains reports whether dishID is a member of the cart.
func (c *Cart) Contains(dishID string) bool {
	return slices.Contains(c.Dishes, dishID)
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Dishes = slices.Clone(c.Dishes)
	if cp.Dishes == nil {
		cp.Dishes = []string{}
	}
	return &cp
}

// Store persists carts. Implementations must enforce at most one cart per
// owner and apply each call atomically.
type Store interface {
	// FindByOwner returns ErrNotFound when the owner has no cart.
	FindByOwner(ctx context.Context, owner string) (*Cart, error)
	// Create inserts a new cart holding dishes. It returns ErrCartExists when
	// the owner already has one.
	Create(ctx context.Context, owner string, dishes []string) (*Cart, error)
	// SetDishes replaces the dish set of the cart identified by id.
	SetDishes(ctx context.Context, id string, dishes []string) (*Cart, error)
}

// Locker serializes find-or-create sequences per owner.
type Locker interface {
	// Lock blocks until the owner's lock is held and returns the release func.
	Lock(ctx context.Context, owner string) (unlock func(), err error)
}

// normalize drops duplicates while keeping first-seen order.
func normalize(dishes []string) []string {
	out := make([]string, 0, len(dishes))
	seen := make(map[string]struct{}, len(dishes))
	for _, d := range dishes {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
