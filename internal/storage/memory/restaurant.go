package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/xenking/foodcart/internal/domain/restaurant"
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository in memory.
type RestaurantRepository struct {
	s *Store
}

// List returns all restaurants ordered by name, without menus.
func (r *RestaurantRepository) List(_ context.Context) ([]restaurant.Restaurant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	list := make([]restaurant.Restaurant, 0, len(r.s.restaurants))
	for _, rest := range r.s.restaurants {
		cp := *rest
		cp.Dishes = nil
		list = append(list, cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// GetBySlug returns the restaurant with slug and its menu.
func (r *RestaurantRepository) GetBySlug(_ context.Context, slug string) (*restaurant.Restaurant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, rest := range r.s.restaurants {
		if rest.Slug == slug {
			return r.s.withMenuLocked(rest), nil
		}
	}
	return nil, restaurant.ErrNotFound
}

// GetByID returns the restaurant with id and its menu.
func (r *RestaurantRepository) GetByID(_ context.Context, id string) (*restaurant.Restaurant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rest, ok := r.s.restaurants[id]
	if !ok {
		return nil, restaurant.ErrNotFound
	}
	return r.s.withMenuLocked(rest), nil
}

// Create stores rest, rejecting duplicate slugs.
func (r *RestaurantRepository) Create(_ context.Context, rest *restaurant.Restaurant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.slugTakenLocked(rest.Slug, rest.ID) {
		return restaurant.ErrSlugTaken
	}
	cp := *rest
	cp.Dishes = nil
	r.s.restaurants[rest.ID] = &cp
	return nil
}

// Update overwrites name, slug and description.
func (r *RestaurantRepository) Update(_ context.Context, rest *restaurant.Restaurant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.restaurants[rest.ID]
	if !ok {
		return restaurant.ErrNotFound
	}
	if r.s.slugTakenLocked(rest.Slug, rest.ID) {
		return restaurant.ErrSlugTaken
	}
	cur.Name = rest.Name
	cur.Slug = rest.Slug
	cur.Description = rest.Description
	return nil
}

// AddDish stores d under its restaurant.
func (r *RestaurantRepository) AddDish(_ context.Context, d *restaurant.Dish) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.restaurants[d.RestaurantID]; !ok {
		return restaurant.ErrNotFound
	}
	r.s.dishes[d.ID] = *d
	return nil
}

func (s *Store) slugTakenLocked(slug, exceptID string) bool {
	for id, rest := range s.restaurants {
		if id != exceptID && rest.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) withMenuLocked(rest *restaurant.Restaurant) *restaurant.Restaurant {
	cp := *rest
	cp.Dishes = []restaurant.Dish{}
	for _, d := range s.dishes {
		if d.RestaurantID == rest.ID {
			cp.Dishes = append(cp.Dishes, d)
		}
	}
	slices.SortFunc(cp.Dishes, func(a, b restaurant.Dish) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return &cp
}
