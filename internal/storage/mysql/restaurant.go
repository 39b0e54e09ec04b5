package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/restaurant"
)

const (
	listRestaurantsSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants ORDER BY name, id`

	getRestaurantBySlugSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants WHERE slug = ?`

	getRestaurantByIDSQL = `SELECT id, name, slug, description, created_at
		FROM restaurants WHERE id = ?`

	listDishesSQL = `SELECT id, restaurant_id, name, price
		FROM dishes WHERE restaurant_id = ? ORDER BY name, id`

	createRestaurantSQL = `INSERT INTO restaurants (id, name, slug, description, created_at)
		VALUES (?, ?, ?, ?, ?)`

	updateRestaurantSQL = `UPDATE restaurants SET name = ?, slug = ?, description = ? WHERE id = ?`
	restaurantExistsSQL = `SELECT COUNT(*) FROM restaurants WHERE id = ?`

	createDishSQL = `INSERT INTO dishes (id, restaurant_id, name, price) VALUES (?, ?, ?, ?)`
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository backed by MySQL.
type RestaurantRepository struct {
	db *sql.DB
}

// NewRestaurantRepository returns a RestaurantRepository that uses sqlDB.
func NewRestaurantRepository(sqlDB *sql.DB) *RestaurantRepository {
	return &RestaurantRepository{db: sqlDB}
}

// List returns all restaurants ordered by name, without menus.
func (r *RestaurantRepository) List(ctx context.Context) ([]restaurant.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx, listRestaurantsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]restaurant.Restaurant, 0)
	for rows.Next() {
		var rest restaurant.Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.Slug, &rest.Description, &rest.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}
		list = append(list, rest)
	}
	return list, rows.Err()
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
	var rest restaurant.Restaurant
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&rest.ID, &rest.Name, &rest.Slug, &rest.Description, &rest.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, restaurant.ErrNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", arg, err)
	}

	rows, err := r.db.QueryContext(ctx, listDishesSQL, rest.ID)
	if err != nil {
		return nil, fmt.Errorf("listing dishes of %q: %w", rest.ID, err)
	}
	defer func() { _ = rows.Close() }()

	rest.Dishes = []restaurant.Dish{}
	for rows.Next() {
		var d restaurant.Dish
		if err := rows.Scan(&d.ID, &d.RestaurantID, &d.Name, &d.Price); err != nil {
			return nil, fmt.Errorf("scanning dish: %w", err)
		}
		rest.Dishes = append(rest.Dishes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing dishes of %q: %w", rest.ID, err)
	}
	return &rest, nil
}

// Create inserts rest. A slug collision yields restaurant.ErrSlugTaken.
func (r *RestaurantRepository) Create(ctx context.Context, rest *restaurant.Restaurant) error {
	_, err := r.db.ExecContext(ctx, createRestaurantSQL, rest.ID, rest.Name, rest.Slug, rest.Description, rest.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return restaurant.ErrSlugTaken
		}
		return fmt.Errorf("creating restaurant %q: %w", rest.Slug, err)
	}
	return nil
}

// Update overwrites name, slug and description.
func (r *RestaurantRepository) Update(ctx context.Context, rest *restaurant.Restaurant) error {
	res, err := r.db.ExecContext(ctx, updateRestaurantSQL, rest.Name, rest.Slug, rest.Description, rest.ID)
	if err != nil {
		if isDuplicate(err) {
			return restaurant.ErrSlugTaken
		}
		return fmt.Errorf("updating restaurant %q: %w", rest.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// MySQL reports zero affected rows for unchanged values.
	var count int
	if err := r.db.QueryRowContext(ctx, restaurantExistsSQL, rest.ID).Scan(&count); err != nil {
		return fmt.Errorf("checking restaurant %q: %w", rest.ID, err)
	}
	if count == 0 {
		return restaurant.ErrNotFound
	}
	return nil
}

// AddDish inserts d. A missing restaurant yields restaurant.ErrNotFound.
func (r *RestaurantRepository) AddDish(ctx context.Context, d *restaurant.Dish) error {
	_, err := r.db.ExecContext(ctx, createDishSQL, d.ID, d.RestaurantID, d.Name, d.Price)
	if err != nil {
		if isMissingReference(err) {
			return restaurant.ErrNotFound
		}
		return fmt.Errorf("creating dish %q: %w", d.Name, err)
	}
	return nil
}
