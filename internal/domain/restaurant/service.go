package restaurant

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRequest holds the input for creating a restaurant.
type CreateRequest struct {
	Name        string
	Description string
}

// Service manages the restaurant catalog. The slug is re-derived whenever a
// name is set.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new restaurant with a slug derived from its name.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Restaurant, error) {
	name, slug, err := deriveName(req.Name)
	if err != nil {
		return nil, err
	}
	r := &Restaurant{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		Dishes:      []Dish{},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create restaurant")
	}
	return r, nil
}

// Rename changes the display name and slug of a restaurant.
func (s *Service) Rename(ctx context.Context, id, newName string) (*Restaurant, error) {
	name, slug, err := deriveName(newName)
	if err != nil {
		return nil, err
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get restaurant %s", id)
	}
	r.Name = name
	r.Slug = slug
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "update restaurant %s", id)
	}
	return r, nil
}

// BySlug returns the restaurant published under slug.
func (s *Service) BySlug(ctx context.Context, slug string) (*Restaurant, error) {
	r, err := s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, errors.Wrapf(err, "get restaurant by slug %q", slug)
	}
	return r, nil
}

// List returns all restaurants without menus.
func (s *Service) List(ctx context.Context) ([]Restaurant, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list restaurants")
	}
	return list, nil
}

// AddDish appends a dish to a restaurant's menu.
func (s *Service) AddDish(ctx context.Context, restaurantID, name string, price decimal.Decimal) (*Dish, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrDishNameRequired
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	d := &Dish{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Name:         name,
		Price:        price.Round(2),
	}
	if err := s.repo.AddDish(ctx, d); err != nil {
		return nil, errors.Wrapf(err, "add dish to restaurant %s", restaurantID)
	}
	return d, nil
}

func deriveName(raw string) (name, slug string, err error) {
	name = strings.TrimSpace(raw)
	slug = Slugify(name)
	if slug == "" {
		return "", "", ErrNameRequired
	}
	return name, slug, nil
}
