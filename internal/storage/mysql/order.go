package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xenking/foodcart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, address, amount, currency, dishes, token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	listOrdersByOwnerSQL = `SELECT id, user_id, address, amount, currency, dishes, token, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MySQL.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository returns an OrderRepository that uses sqlDB.
func NewOrderRepository(sqlDB *sql.DB) *OrderRepository {
	return &OrderRepository{db: sqlDB}
}

// Create persists a new order with dishes in a JSON column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.db.ExecContext(ctx, createOrderSQL,
		o.ID, o.Owner, o.Address, o.Amount, o.Currency, encodeStrings(o.Dishes), o.Token, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, owner string) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx, listOrdersByOwnerSQL, owner)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", owner, err)
	}
	defer func() { _ = rows.Close() }()

	orders := make([]order.Order, 0)
	for rows.Next() {
		var (
			o          order.Order
			dishesJSON []byte
		)
		if err := rows.Scan(&o.ID, &o.Owner, &o.Address, &o.Amount, &o.Currency, &dishesJSON, &o.Token, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		dishes, err := decodeStrings(dishesJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding dishes of order %q: %w", o.ID, err)
		}
		o.Dishes = dishes
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", owner, err)
	}
	return orders, nil
}
