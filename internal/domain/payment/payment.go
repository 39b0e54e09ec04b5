package payment

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable marks a payment authorization call that failed
	// for reasons other than a decline.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected marks an authorization declined by the processor.
	ErrGatewayRejected = errors.New("payment rejected by gateway")
	// ErrInvalidAmount is returned for non-positive or unrepresentable amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// State is the position of a checkout request in the authorization flow.
type State string

const (
	StateRequested           State = "requested"
	StatePending             State = "authorization_pending"
	StateAuthorized          State = "authorized"
	StateSkipped             State = "skipped"
	StateAuthorizationFailed State = "authorization_failed"
)

// Metadata keys attached to every authorization for later reconciliation.
const (
	MetadataAddress = "address"
	MetadataDishes  = "dishes"
)

// Intent is a single authorization request sent to the gateway.
type Intent struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Result is what the gateway returns for an accepted intent.
type Result struct {
	ID           string
	ClientSecret string
}

// Gateway authorizes payments with an external processor. Implementations
// wrap declines with ErrGatewayRejected.
type Gateway interface {
	CreateAuthorization(ctx context.Context, intent Intent) (*Result, error)
}

// MinorUnits converts a major-unit amount to minor units (x100, rounded half
// away from zero).
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Shift(2).Round(0)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || minor.IsZero() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
