package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/restaurant"
	"github.com/xenking/foodcart/internal/handler"
	"github.com/xenking/foodcart/internal/payment/stripe"
	"github.com/xenking/foodcart/pkg/health"
	"github.com/xenking/foodcart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database.Client),
		zap.String("lock", cfg.Lock.Backend),
	)

	b, err := openBackend(ctx, lg, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			lg.Warn("Close database", zap.Error(err))
		}
	}()

	locks, err := openOwnerLock(cfg.Lock, b)
	if err != nil {
		return errors.Wrap(err, "open owner lock")
	}
	defer func() {
		if err := locks.close(); err != nil {
			lg.Warn("Close lock backend", zap.Error(err))
		}
	}()

	// Health checks.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.Register(health.Readiness, "database", health.PingCheck(b))
	if locks.check != nil {
		healthSvc.Register(health.Readiness, "lock", locks.check)
	}
	healthSvc.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000),
		health.WithTimeout(time.Second),
	)
	healthSvc.Register(health.Liveness, "gc_pause", health.GCMaxPauseCheck(time.Second),
		health.WithTimeout(time.Second),
	)
	healthSvc.Start(ctx, 10*time.Second)

	// Payment gateway. Without a key checkout runs in degraded mode.
	var gateway payment.Gateway
	if cfg.Payment.StripeKey != "" {
		gateway = stripe.New(stripe.Config{
			Key:        cfg.Payment.StripeKey,
			BaseURL:    cfg.Payment.BaseURL,
			Timeout:    cfg.Payment.Timeout,
			MaxRetries: cfg.Payment.MaxRetries,
		}, lg, m.TracerProvider())
	} else {
		lg.Warn("No Stripe key configured, orders are placed without payment authorization")
	}
	if cfg.APIKeyPepper == "" {
		lg.Warn("API key pepper is empty")
	}

	// Domain services.
	orderService, err := order.NewService(
		payment.NewAuthorizer(gateway, cfg.Payment.Currency),
		b.orders,
		cfg.Payment.Currency,
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.New(
		cart.NewManager(b.carts, locks),
		orderService,
		restaurant.NewService(b.restaurants),
		auth.NewAuthenticator(b.apikeys, []byte(cfg.APIKeyPepper)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey, httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.CredentialOrIP(handler.APIKey),
			}),
			httpmiddleware.Instrument("foodcart-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
