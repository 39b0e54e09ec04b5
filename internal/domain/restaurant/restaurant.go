package restaurant

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested restaurant does not exist.
	ErrNotFound = errors.New("restaurant not found")
	// ErrSlugTaken is returned when another restaurant already uses the slug
	// derived from a name.
	ErrSlugTaken = errors.New("restaurant slug already taken")
	// ErrNameRequired is returned for names that produce an empty slug.
	ErrNameRequired = errors.New("restaurant name required")
	// ErrDishNameRequired is returned for blank dish names.
	ErrDishNameRequired = errors.New("dish name required")
	// ErrInvalidPrice is returned for negative dish prices.
	ErrInvalidPrice = errors.New("dish price must not be negative")
)

// Restaurant is a catalog entry with its menu.
type Restaurant struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Dishes      []Dish
	CreatedAt   time.Time
}

// Dish is a menu item referenced by carts and orders.
type Dish struct {
	ID           string
	RestaurantID string
	Name         string
	Price        decimal.Decimal
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context) ([]Restaurant, error)
	// GetBySlug and GetByID load the menu as well and return ErrNotFound
	// when nothing matches.
	GetBySlug(ctx context.Context, slug string) (*Restaurant, error)
	GetByID(ctx context.Context, id string) (*Restaurant, error)
	// Create and Update return ErrSlugTaken on a slug collision.
	Create(ctx context.Context, r *Restaurant) error
	Update(ctx context.Context, r *Restaurant) error
	// AddDish returns ErrNotFound when the restaurant does not exist.
	AddDish(ctx context.Context, d *Dish) error
}

// Slugify derives the lowercase, URL-safe identifier for a display name.
func Slugify(name string) string {
	return slug.Make(name)
}
