// Package menu imports restaurant menus into the catalog for the offline
// tools (seed-db, menu-ingest).
package menu

import (
	"context"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/restaurant"
)

// Entry is one restaurant with its dishes as found in a menu dump.
type Entry struct {
	Name        string
	Description string
	Dishes      []Dish
}

// Dish is a menu item. An empty ID gets a generated one.
type Dish struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Stats counts what an Importer did.
type Stats struct {
	Restaurants int
	Dishes      int
	Duplicates  int
}

// Importer creates restaurants that are not in the catalog yet. Restaurants
// are keyed by slug; a slug already present is skipped with its dishes.
//
// A bloom filter holds every slug known to the importer: the catalog's after
// Preload plus everything imported in this run. Slugs the filter has never
// seen go straight to Create. A positive is confirmed with a lookup, so known
// restaurants are skipped with a read instead of a failed insert, and a false
// positive costs one extra read.
//
// Importer is not safe for concurrent use.
type Importer struct {
	repo  restaurant.Repository
	lg    *zap.Logger
	seen  *bloom.BloomFilter
	now   func() time.Time
	stats Stats
}

// NewImporter returns an Importer sized for about expected restaurants.
func NewImporter(repo restaurant.Repository, lg *zap.Logger, expected uint) *Importer {
	if expected == 0 {
		expected = 1024
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Importer{
		repo: repo,
		lg:   lg,
		seen: bloom.NewWithEstimates(expected, 0.001),
		now:  time.Now,
	}
}

// Preload adds the slugs already in the catalog to the filter and returns
// how many there were.
func (im *Importer) Preload(ctx context.Context) (int, error) {
	existing, err := im.repo.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list restaurants")
	}
	for i := range existing {
		im.seen.AddString(existing[i].Slug)
	}
	return len(existing), nil
}

// Stats returns the counters accumulated so far.
func (im *Importer) Stats() Stats { return im.stats }

// Import stores e unless a restaurant with the same slug exists. It reports
// whether the restaurant was created.
func (im *Importer) Import(ctx context.Context, e Entry) (bool, error) {
	name := strings.TrimSpace(e.Name)
	slug := restaurant.Slugify(name)
	if slug == "" {
		return false, restaurant.ErrNameRequired
	}
	for _, d := range e.Dishes {
		if strings.TrimSpace(d.Name) == "" {
			return false, errors.Wrapf(restaurant.ErrDishNameRequired, "restaurant %q", slug)
		}
		if d.Price.IsNegative() {
			return false, errors.Wrapf(restaurant.ErrInvalidPrice, "dish %q", d.Name)
		}
	}

	// Unseen slugs rely on ErrSlugTaken for restaurants created by others.
	if im.seen.TestString(slug) {
		exists, err := im.exists(ctx, slug)
		if err != nil {
			return false, err
		}
		if exists {
			im.stats.Duplicates++
			return false, nil
		}
	}

	rest := &restaurant.Restaurant{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(e.Description),
		CreatedAt:   im.now().UTC(),
	}
	if err := im.repo.Create(ctx, rest); err != nil {
		if errors.Is(err, restaurant.ErrSlugTaken) {
			im.seen.AddString(slug)
			im.stats.Duplicates++
			return false, nil
		}
		return false, errors.Wrapf(err, "create restaurant %q", slug)
	}
	im.seen.AddString(slug)
	im.stats.Restaurants++

	for _, d := range e.Dishes {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := im.repo.AddDish(ctx, &restaurant.Dish{
			ID:           id,
			RestaurantID: rest.ID,
			Name:         strings.TrimSpace(d.Name),
			Price:        d.Price.Round(2),
		}); err != nil {
			return true, errors.Wrapf(err, "add dish %q to %q", d.Name, slug)
		}
		im.stats.Dishes++
	}
	im.lg.Debug("Imported restaurant",
		zap.String("slug", slug),
		zap.Int("dishes", len(e.Dishes)),
	)
	return true, nil
}

func (im *Importer) exists(ctx context.Context, slug string) (bool, error) {
	_, err := im.repo.GetBySlug(ctx, slug)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, restaurant.ErrNotFound):
		return false, nil
	default:
		return false, errors.Wrapf(err, "look up restaurant %q", slug)
	}
}
