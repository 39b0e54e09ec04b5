// Package memory implements every repository in process memory. It backs
// local development and tests; data is lost on restart.
package memory

import (
	"sync"
	"time"

	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/restaurant"
)

// Option configures a Store.
type Option func(*Store)

// WithDishValidation makes cart writes reject dishes missing from the
// catalog, mirroring the foreign key of the SQL backends.
func WithDishValidation() Option {
	return func(s *Store) { s.validateDishes = true }
}

// Store holds all entities behind one lock.
type Store struct {
	mu sync.RWMutex

	carts       map[string]*cartRow // by cart ID
	cartByOwner map[string]string   // owner -> cart ID
	orders      map[string]order.Order
	restaurants map[string]*restaurant.Restaurant
	dishes      map[string]restaurant.Dish
	apikeys     map[string]auth.APIKeyInfo // by hash

	validateDishes bool
	now            func() time.Time
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		carts:       make(map[string]*cartRow),
		cartByOwner: make(map[string]string),
		orders:      make(map[string]order.Order),
		restaurants: make(map[string]*restaurant.Restaurant),
		dishes:      make(map[string]restaurant.Dish),
		apikeys:     make(map[string]auth.APIKeyInfo),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Carts returns the cart.Store view.
func (s *Store) Carts() *CartStore { return &CartStore{s: s} }

// Orders returns the order.Repository view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Restaurants returns the restaurant.Repository view.
func (s *Store) Restaurants() *RestaurantRepository { return &RestaurantRepository{s: s} }

// APIKeys returns the auth.Repository view.
func (s *Store) APIKeys() *APIKeyRepository { return &APIKeyRepository{s: s} }
