package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/foodcart/internal/domain/cart"
)

const (
	findCartByOwnerSQL = `SELECT id, user_id, updated_at FROM carts WHERE user_id = ?`
	listCartDishesSQL  = `SELECT dish_id FROM cart_dishes WHERE cart_id = ? ORDER BY position`
	insertCartSQL      = `INSERT INTO carts (id, user_id, updated_at) VALUES (?, ?, ?)`
	lockCartSQL        = `SELECT user_id FROM carts WHERE id = ? FOR UPDATE`
	touchCartSQL       = `UPDATE carts SET updated_at = ? WHERE id = ?`
	deleteDishesSQL    = `DELETE FROM cart_dishes WHERE cart_id = ?`
	insertDishesPrefix = `INSERT INTO cart_dishes (cart_id, dish_id, position) VALUES `
	findMissingDishSQL = `SELECT ? NOT IN (SELECT id FROM dishes)`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by MySQL.
type CartStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewCartStore returns a CartStore that uses sqlDB.
func NewCartStore(sqlDB *sql.DB) *CartStore {
	return &CartStore{db: sqlDB, now: time.Now}
}

// FindByOwner returns the owner's cart with dishes in insertion order.
func (s *CartStore) FindByOwner(ctx context.Context, owner string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.db.QueryRowContext(ctx, findCartByOwnerSQL, owner).Scan(&c.ID, &c.Owner, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart for %q: %w", owner, err)
	}

	rows, err := s.db.QueryContext(ctx, listCartDishesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing dishes of cart %q: %w", c.ID, err)
	}
	defer func() { _ = rows.Close() }()

	c.Dishes = []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning cart dish: %w", err)
		}
		c.Dishes = append(c.Dishes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing dishes of cart %q: %w", c.ID, err)
	}
	return &c, nil
}

// Create inserts the cart and its dishes in one transaction.
func (s *CartStore) Create(ctx context.Context, owner string, dishes []string) (*cart.Cart, error) {
	c := &cart.Cart{
		ID:        uuid.NewString(),
		Owner:     owner,
		Dishes:    append([]string{}, dishes...),
		UpdatedAt: s.now().UTC(),
	}
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertCartSQL, c.ID, c.Owner, c.UpdatedAt); err != nil {
			if isDuplicate(err) {
				return cart.ErrCartExists
			}
			return fmt.Errorf("inserting cart: %w", err)
		}
		return insertDishes(ctx, tx, c.ID, c.Dishes)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetDishes replaces the cart's dishes in one transaction.
func (s *CartStore) SetDishes(ctx context.Context, id string, dishes []string) (*cart.Cart, error) {
	c := &cart.Cart{
		ID:        id,
		Dishes:    append([]string{}, dishes...),
		UpdatedAt: s.now().UTC(),
	}
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, lockCartSQL, id).Scan(&c.Owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return cart.ErrNotFound
			}
			return fmt.Errorf("locking cart %q: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, touchCartSQL, c.UpdatedAt, id); err != nil {
			return fmt.Errorf("updating cart %q: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, deleteDishesSQL, id); err != nil {
			return fmt.Errorf("clearing cart %q: %w", id, err)
		}
		return insertDishes(ctx, tx, id, c.Dishes)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func insertDishes(ctx context.Context, tx *sql.Tx, cartID string, dishes []string) error {
	if len(dishes) == 0 {
		return nil
	}
	var (
		query strings.Builder
		args  = make([]any, 0, len(dishes)*3)
	)
	query.WriteString(insertDishesPrefix)
	for i, d := range dishes {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString("(?, ?, ?)")
		args = append(args, cartID, d, i+1)
	}
	if _, err := tx.ExecContext(ctx, query.String(), args...); err != nil {
		if isMissingReference(err) {
			return &cart.InvalidDishError{DishID: firstMissingDish(ctx, tx, dishes)}
		}
		return fmt.Errorf("inserting cart dishes: %w", err)
	}
	return nil
}

// firstMissingDish names the offending dish, which MySQL omits from its
// foreign key error. It returns "" when the lookup itself fails.
func firstMissingDish(ctx context.Context, tx *sql.Tx, dishes []string) string {
	for _, d := range dishes {
		var missing bool
		if err := tx.QueryRowContext(ctx, findMissingDishSQL, d).Scan(&missing); err != nil {
			return ""
		}
		if missing {
			return d
		}
	}
	return ""
}
