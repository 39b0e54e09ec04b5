// Package stripe implements payment.Gateway over Stripe PaymentIntents.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/payment"
)

var _ payment.Gateway = (*Gateway)(nil)

// Config configures the Stripe client.
type Config struct {
	Key string
	// BaseURL overrides the Stripe API endpoint. Empty means api.stripe.com.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int64
}

// Gateway creates PaymentIntents. One call per checkout; retries stay inside
// the Stripe client and reuse the intent's idempotency key.
type Gateway struct {
	api    *client.API
	tracer trace.Tracer
}

// New returns a Gateway for cfg.Key. Client diagnostics go to lg.
func New(cfg Config, lg *zap.Logger, tracerProvider trace.TracerProvider) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	backendCfg := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripego.Int64(cfg.MaxRetries),
		LeveledLogger:     lg.Named("stripe").Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripego.String(strings.TrimSuffix(cfg.BaseURL, "/"))
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg)

	return &Gateway{
		api: client.New(cfg.Key, &stripego.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		tracer: tracerProvider.Tracer("github.com/xenking/foodcart/internal/payment/stripe"),
	}
}

// CreateAuthorization creates a PaymentIntent for intent and returns its
// client secret. Card errors map to payment.ErrGatewayRejected.
func (g *Gateway) CreateAuthorization(ctx context.Context, intent payment.Intent) (*payment.Result, error) {
	ctx, span := g.tracer.Start(ctx, "stripe.CreatePaymentIntent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("payment.amount_minor", intent.AmountMinor),
			attribute.String("payment.currency", intent.Currency),
		),
	)
	defer span.End()

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(intent.AmountMinor),
		Currency: stripego.String(strings.ToLower(intent.Currency)),
	}
	params.Context = ctx
	for k, v := range intent.Metadata {
		params.AddMetadata(k, v)
	}
	if intent.IdempotencyKey != "" {
		params.SetIdempotencyKey(intent.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.intent_id", pi.ID))
	zctx.From(ctx).Debug("Payment intent created", zap.String("intent_id", pi.ID))
	return &payment.Result{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// classify marks declines as rejections and everything else as outages.
func classify(err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) &&
		(stripeErr.Type == stripego.ErrorTypeCard || stripeErr.HTTPStatusCode == http.StatusPaymentRequired) {
		return fmt.Errorf("%w: %w", payment.ErrGatewayRejected, err)
	}
	return fmt.Errorf("%w: %w", payment.ErrGatewayUnavailable, err)
}
