package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, address, amount, currency, dishes, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	listOrdersByOwnerSQL = `SELECT id, user_id, address, amount, currency, dishes, token, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Dishes keep their order and duplicates in a
// JSONB array encoded by pgx.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	dishes := o.Dishes
	if dishes == nil {
		dishes = []string{}
	}
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Owner, o.Address, o.Amount, o.Currency, dishes, o.Token, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, owner string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByOwnerSQL, owner)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", owner, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", owner, err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	if err := row.Scan(&o.ID, &o.Owner, &o.Address, &o.Amount, &o.Currency, &o.Dishes, &o.Token, &o.CreatedAt); err != nil {
		return o, err
	}
	return o, nil
}
