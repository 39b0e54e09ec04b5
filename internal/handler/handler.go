// Package handler exposes the cart, checkout and catalog operations over
// HTTP/JSON. Each route maps to exactly one service call.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/restaurant"
)

// CartManager is the cart surface used by the transport.
type CartManager interface {
	Get(ctx context.Context, owner string) (*cart.Cart, error)
	AddDish(ctx context.Context, owner, dishID string) (*cart.Cart, error)
	RemoveDish(ctx context.Context, owner, dishID string) (*cart.Cart, error)
	Clear(ctx context.Context, owner string) (*cart.Cart, error)
}

// OrderService places and lists orders.
type OrderService interface {
	Place(ctx context.Context, owner string, req order.PlaceRequest) (*order.Order, error)
	ListByOwner(ctx context.Context, owner string) ([]order.Order, error)
}

// Catalog manages restaurants and their menus.
type Catalog interface {
	Create(ctx context.Context, req restaurant.CreateRequest) (*restaurant.Restaurant, error)
	Rename(ctx context.Context, id, name string) (*restaurant.Restaurant, error)
	BySlug(ctx context.Context, slug string) (*restaurant.Restaurant, error)
	List(ctx context.Context) ([]restaurant.Restaurant, error)
	AddDish(ctx context.Context, restaurantID, name string, price decimal.Decimal) (*restaurant.Dish, error)
}

// Authenticator resolves a raw API key to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (auth.Identity, error)
}

var (
	_ CartManager   = (*cart.Manager)(nil)
	_ OrderService  = (*order.Service)(nil)
	_ Catalog       = (*restaurant.Service)(nil)
	_ Authenticator = (*auth.Authenticator)(nil)
)

// Handler serves the /api routes.
type Handler struct {
	carts       CartManager
	orders      OrderService
	restaurants Catalog
	auth        Authenticator
}

// New constructs a Handler with the required domain dependencies.
func New(carts CartManager, orders OrderService, restaurants Catalog, authn Authenticator) *Handler {
	return &Handler{
		carts:       carts,
		orders:      orders,
		restaurants: restaurants,
		auth:        authn,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	user := h.requireScope(auth.ScopeUser)
	admin := h.requireScope(auth.ScopeAdmin)

	mux.Handle("POST /api/cart/dishes", user(h.addToCart))
	mux.Handle("DELETE /api/cart/dishes/{dish}", user(h.removeFromCart))
	mux.Handle("DELETE /api/cart", user(h.clearCart))
	mux.Handle("GET /api/me/cart", user(h.myCart))
	mux.Handle("GET /api/me/orders", user(h.myOrders))
	mux.Handle("POST /api/orders", user(h.placeOrder))

	mux.HandleFunc("GET /api/restaurants", h.listRestaurants)
	mux.HandleFunc("GET /api/restaurants/{slug}", h.restaurantBySlug)
	mux.Handle("POST /api/restaurants", admin(h.createRestaurant))
	mux.Handle("PATCH /api/restaurants/{id}", admin(h.renameRestaurant))
	mux.Handle("POST /api/restaurants/{id}/dishes", admin(h.addDish))
}
