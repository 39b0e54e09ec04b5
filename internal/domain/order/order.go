package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed order. Token carries the payment authorization secret
// and is empty when authorization was skipped.
type Order struct {
	ID        string
	Owner     string
	Address   string
	Amount    decimal.Decimal
	Currency  string
	Dishes    []string
	Token     string
	CreatedAt time.Time
}

// Authorized reports whether the order carries a payment authorization.
func (o *Order) Authorized() bool {
	return o.Token != ""
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order in its final form.
	Create(ctx context.Context, order *Order) error
	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, owner string) ([]Order, error)
}
