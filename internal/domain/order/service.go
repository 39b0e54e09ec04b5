package order

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/payment"
)

// Sentinel errors for order validation and persistence.
var (
	ErrAddressRequired  = errors.New("address required")
	ErrEmptyDishes      = errors.New("dishes required")
	ErrOwnerRequired    = errors.New("order owner required")
	ErrStoreUnavailable = errors.New("order store unavailable")
)

// Terminal checkout states owned by the order service.
const (
	StatePersisted     payment.State = "order_persisted"
	StatePersistFailed payment.State = "order_persist_failed"
)

// Authorizer obtains a payment authorization for an order about to be placed.
type Authorizer interface {
	Authorize(ctx context.Context, req payment.Request) (payment.Authorization, error)
}

// PlaceRequest holds the raw order fields supplied by the caller.
type PlaceRequest struct {
	Address string
	Amount  decimal.Decimal
	Dishes  []string
}

// Service places orders: authorize first, then persist with the token as part
// of the creation payload.
type Service struct {
	authorizer Authorizer
	orders     Repository
	currency   string
	outcomes   metric.Int64Counter
	now        func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	authorizer Authorizer,
	orders Repository,
	currency string,
	meters metric.MeterProvider,
) (*Service, error) {
	outcomes, err := meters.Meter("github.com/xenking/foodcart/internal/domain/order").Int64Counter(
		"foodcart.checkout.outcomes",
		metric.WithDescription("Checkout requests by terminal state"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	return &Service{
		authorizer: authorizer,
		orders:     orders,
		currency:   currency,
		outcomes:   outcomes,
		now:        time.Now,
	}, nil
}

// Place validates req, authorizes payment and persists the order. When
// authorization fails nothing is persisted.
func (s *Service) Place(ctx context.Context, owner string, req PlaceRequest) (*Order, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	// Orders store cents; an amount that rounds to zero is not positive.
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, payment.ErrInvalidAmount
	}
	if len(req.Dishes) == 0 {
		return nil, ErrEmptyDishes
	}

	lg := zctx.From(ctx).With(zap.String("owner", owner))
	lg.Debug("Checkout state", zap.String("state", string(payment.StateRequested)))

	auth, err := s.authorizer.Authorize(ctx, payment.Request{
		Address: address,
		Amount:  amount,
		Dishes:  req.Dishes,
	})
	if err != nil {
		s.record(ctx, payment.StateAuthorizationFailed)
		lg.Warn("Payment authorization failed", zap.Error(err))
		return nil, errors.Wrap(err, "checkout")
	}
	lg.Debug("Checkout state", zap.String("state", string(auth.State)))

	o := &Order{
		ID:        uuid.NewString(),
		Owner:     owner,
		Address:   address,
		Amount:    amount,
		Currency:  s.currency,
		Dishes:    slices.Clone(req.Dishes),
		Token:     auth.Token,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		s.record(ctx, StatePersistFailed)
		if auth.State == payment.StateAuthorized {
			lg.Error("Order not persisted after payment authorization", zap.Error(err))
		}
		return nil, errors.Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), "create order")
	}

	s.record(ctx, auth.State)
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("state", string(StatePersisted)),
		zap.Bool("authorized", o.Authorized()),
	)
	return o, nil
}

// ListByOwner returns the owner's orders.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]Order, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	orders, err := s.orders.ListByOwner(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %w", ErrStoreUnavailable, err), "list orders")
	}
	return orders, nil
}

func (s *Service) record(ctx context.Context, state payment.State) {
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}
