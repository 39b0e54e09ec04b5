package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Request holds the order fields relevant to authorization.
type Request struct {
	Address string
	Amount  decimal.Decimal
	Dishes  []string
}

// Authorization is the outcome of Authorize. Token is empty when the
// authorization was skipped.
type Authorization struct {
	State       State
	Token       string
	AmountMinor int64
}

// Authorizer obtains a payment authorization before an order is created.
// Without a gateway it runs in pass-through mode and authorizes nothing.
type Authorizer struct {
	gateway  Gateway
	currency string
	newKey   func() string
}

// NewAuthorizer creates an Authorizer. A nil gateway enables pass-through
// mode.
func NewAuthorizer(gateway Gateway, currency string) *Authorizer {
	return &Authorizer{
		gateway:  gateway,
		currency: currency,
		newKey:   uuid.NewString,
	}
}

// Enabled reports whether a gateway is configured.
func (a *Authorizer) Enabled() bool {
	return a.gateway != nil
}

// Authorize issues exactly one gateway call for req. Gateway failures are
// returned as ErrGatewayRejected or ErrGatewayUnavailable; an empty client
// secret is never returned as a successful token.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (Authorization, error) {
	lg := zctx.From(ctx)
	if a.gateway == nil {
		lg.Debug("Payment authorization skipped, no gateway configured")
		return Authorization{State: StateSkipped}, nil
	}

	minor, err := MinorUnits(req.Amount)
	if err != nil {
		return Authorization{State: StateAuthorizationFailed}, err
	}

	var dishesJSON jx.Encoder
	dishesJSON.ArrStart()
	for _, d := range req.Dishes {
		dishesJSON.Str(d)
	}
	dishesJSON.ArrEnd()

	intent := Intent{
		AmountMinor: minor,
		Currency:    a.currency,
		Metadata: map[string]string{
			MetadataAddress: req.Address,
			MetadataDishes:  dishesJSON.String(),
		},
		IdempotencyKey: a.newKey(),
	}

	lg.Debug("Requesting payment authorization",
		zap.Int64("amount_minor", minor),
		zap.String("currency", a.currency),
		zap.String("idempotency_key", intent.IdempotencyKey),
	)
	res, err := a.gateway.CreateAuthorization(ctx, intent)
	if err != nil {
		if errors.Is(err, ErrGatewayRejected) {
			return Authorization{State: StateAuthorizationFailed}, errors.Wrap(err, "authorize payment")
		}
		return Authorization{State: StateAuthorizationFailed},
			errors.Wrap(fmt.Errorf("%w: %w", ErrGatewayUnavailable, err), "authorize payment")
	}
	if res == nil || res.ClientSecret == "" {
		return Authorization{State: StateAuthorizationFailed},
			errors.Wrap(fmt.Errorf("%w: empty client secret", ErrGatewayUnavailable), "authorize payment")
	}

	return Authorization{
		State:       StateAuthorized,
		Token:       res.ClientSecret,
		AmountMinor: minor,
	}, nil
}
