package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/restaurant"
)

const (
	listRestaurantsSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants ORDER BY name, id`

	getRestaurantBySlugSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants WHERE slug = $1`

	getRestaurantByIDSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants WHERE id = $1`

	listDishesSQL = `SELECT id, restaurant_id, name, price
		FROM dishes WHERE restaurant_id = $1 ORDER BY name, id`

	createRestaurantSQL = `INSERT INTO restaurants (id, name, slug, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	updateRestaurantSQL = `UPDATE restaurants SET name = $2, slug = $3, description = $4 WHERE id = $1`

	createDishSQL = `INSERT INTO dishes (id, restaurant_id, name, price) VALUES ($1, $2, $3, $4)`
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository backed by PostgreSQL.
type RestaurantRepository struct {
	pool *pgxpool.Pool
}

// NewRestaurantRepository returns a RestaurantRepository that uses the given pool.
func NewRestaurantRepository(pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{pool: pool}
}

// List returns all restaurants ordered by name, without menus.
func (r *RestaurantRepository) List(ctx context.Context) ([]restaurant.Restaurant, error) {
	rows, err := r.pool.Query(ctx, listRestaurantsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	return pgx.CollectRows(rows, scanRestaurant)
}

// GetBySlug returns the restaurant with slug and its menu.
func (r *RestaurantRepository) GetBySlug(ctx context.Context, slug string) (*restaurant.Restaurant, error) {
	return r.get(ctx, getRestaurantBySlugSQL, slug)
}

// GetByID returns the restaurant with id and its menu.
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	return r.get(ctx, getRestaurantByIDSQL, id)
}

func (r *RestaurantRepository) get(ctx context.Context, query, arg string) (*restaurant.Restaurant, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", arg, err)
	}
	rest, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, restaurant.ErrNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", arg, err)
	}

	rows, err = r.pool.Query(ctx, listDishesSQL, rest.ID)
	if err != nil {
		return nil, fmt.Errorf("listing dishes of %q: %w", rest.ID, err)
	}
	rest.Dishes, err = pgx.CollectRows(rows, scanDish)
	if err != nil {
		return nil, fmt.Errorf("listing dishes of %q: %w", rest.ID, err)
	}
	return &rest, nil
}

// Create inserts rest. A slug collision yields restaurant.ErrSlugTaken.
func (r *RestaurantRepository) Create(ctx context.Context, rest *restaurant.Restaurant) error {
	_, err := r.pool.Exec(ctx, createRestaurantSQL, rest.ID, rest.Name, rest.Slug, rest.Description, rest.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return restaurant.ErrSlugTaken
		}
		return fmt.Errorf("creating restaurant %q: %w", rest.Slug, err)
	}
	return nil
}

// Update overwrites name, slug and description.
func (r *RestaurantRepository) Update(ctx context.Context, rest *restaurant.Restaurant) error {
	tag, err := r.pool.Exec(ctx, updateRestaurantSQL, rest.ID, rest.Name, rest.Slug, rest.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return restaurant.ErrSlugTaken
		}
		return fmt.Errorf("updating restaurant %q: %w", rest.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return restaurant.ErrNotFound
	}
	return nil
}

// AddDish inserts d. A missing restaurant yields restaurant.ErrNotFound.
func (r *RestaurantRepository) AddDish(ctx context.Context, d *restaurant.Dish) error {
	_, err := r.pool.Exec(ctx, createDishSQL, d.ID, d.RestaurantID, d.Name, d.Price)
	if err != nil {
		if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == codeForeignKeyViolation {
			return restaurant.ErrNotFound
		}
		return fmt.Errorf("creating dish %q: %w", d.Name, err)
	}
	return nil
}

func scanRestaurant(row pgx.CollectableRow) (restaurant.Restaurant, error) {
	var rest restaurant.Restaurant
	err := row.Scan(&rest.ID, &rest.Name, &rest.Slug, &rest.Description, &rest.CreatedAt)
	return rest, err
}

func scanDish(row pgx.CollectableRow) (restaurant.Dish, error) {
	var d restaurant.Dish
	err := row.Scan(&d.ID, &d.RestaurantID, &d.Name, &d.Price)
	return d, err
}
