package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/cart"
)

const (
	findCartByOwnerSQL = `SELECT c.id, c.user_id, c.updated_at,
		COALESCE(array_agg(cd.dish_id ORDER BY cd.position) FILTER (WHERE cd.dish_id IS NOT NULL), '{}')
		FROM carts c
		LEFT JOIN cart_dishes cd ON cd.cart_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id`

	insertCartSQL = `INSERT INTO carts (id, user_id, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`

	touchCartSQL = `UPDATE carts SET updated_at = $2 WHERE id = $1 RETURNING user_id`

	deleteCartDishesSQL = `DELETE FROM cart_dishes WHERE cart_id = $1`

	insertCartDishesSQL = `INSERT INTO cart_dishes (cart_id, dish_id, position)
		SELECT $1, t.dish_id, t.position FROM unnest($2::text[]) WITH ORDINALITY AS t(dish_id, position)`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. The carts.user_id
// unique constraint guarantees one cart per owner even without a locker.
type CartStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool, now: time.Now}
}

// FindByOwner returns the owner's cart with dishes in insertion order.
func (s *CartStore) FindByOwner(ctx context.Context, owner string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.pool.QueryRow(ctx, findCartByOwnerSQL, owner).Scan(&c.ID, &c.Owner, &c.UpdatedAt, &c.Dishes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart for %q: %w", owner, err)
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

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertCartSQL, c.ID, c.Owner, c.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return cart.ErrCartExists
			}
			return fmt.Errorf("inserting cart: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrCartExists
		}
		return insertCartDishes(ctx, tx, c.ID, c.Dishes)
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

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, touchCartSQL, id, c.UpdatedAt).Scan(&c.Owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrNotFound
			}
			return fmt.Errorf("updating cart %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx, deleteCartDishesSQL, id); err != nil {
			return fmt.Errorf("clearing cart %q: %w", id, err)
		}
		return insertCartDishes(ctx, tx, id, c.Dishes)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func insertCartDishes(ctx context.Context, tx pgx.Tx, cartID string, dishes []string) error {
	if len(dishes) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, insertCartDishesSQL, cartID, dishes); err != nil {
		if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == codeForeignKeyViolation {
			return &cart.InvalidDishError{DishID: violatedKey(pgErr.Detail)}
		}
		return fmt.Errorf("inserting cart dishes: %w", err)
	}
	return nil
}
