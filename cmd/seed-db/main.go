package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/foodcart/internal/app"
	"github.com/xenking/foodcart/internal/domain/auth"
	"github.com/xenking/foodcart/internal/menu"
)

type config struct {
	Database     app.DatabaseConfig
	MenuFile     string `default:"db/seed/restaurants.json" usage:"JSON array of restaurants with dishes" flag:"menu-file"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (FOODCART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Seed         seedConfig
}

type seedConfig struct {
	UserID   string `default:"demo" usage:"Owner of the seeded user key"`
	UserKey  string `usage:"Raw API key with the user scope (FOODCART_SEED_USER_KEY)"`
	AdminKey string `usage:"Raw API key with the admin scope (FOODCART_SEED_ADMIN_KEY)"`
}

func main() {
	lg := newLogger()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOODCART",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.URL == "" {
		lg.Fatal("Database URL is required: set FOODCART_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Seed.UserKey == "" && cfg.Seed.AdminKey == "" {
		lg.Fatal("At least one of FOODCART_SEED_USER_KEY and FOODCART_SEED_ADMIN_KEY is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	lg.Info("Connecting to database", zap.String("client", cfg.Database.Client))

	repos, err := app.OpenRepositories(ctx, lg, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "open repositories")
	}
	defer func() { _ = repos.Close() }()

	if err := seedMenu(ctx, lg, repos, cfg.MenuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	pepper := []byte(cfg.APIKeyPepper)
	keys := []auth.APIKeyInfo{
		{
			ID:     "seed-user",
			UserID: cfg.Seed.UserID,
			Name:   "Seeded user key",
			Scopes: []string{auth.ScopeUser},
		},
		{
			ID:     "seed-admin",
			UserID: "admin",
			Name:   "Seeded admin key",
			Scopes: []string{auth.ScopeUser, auth.ScopeAdmin},
		},
	}
	for i, raw := range []string{cfg.Seed.UserKey, cfg.Seed.AdminKey} {
		if raw == "" {
			continue
		}
		k := keys[i]
		k.KeyHash = auth.HashKey(pepper, raw)
		if err := repos.APIKeys.Create(ctx, &k); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.ID)
		}
		lg.Info("Upserted API key",
			zap.String("id", k.ID),
			zap.String("user_id", k.UserID),
			zap.Strings("scopes", k.Scopes),
		)
	}
	return nil
}

func seedMenu(ctx context.Context, lg *zap.Logger, repos *app.Repositories, path string) error {
	lg.Info("Reading menu file", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}
	entries, err := menu.DecodeEntries(jx.DecodeBytes(data))
	if err != nil {
		return errors.Wrap(err, "parse menu file")
	}

	im := menu.NewImporter(repos.Restaurants, lg, uint(len(entries)))
	if _, err := im.Preload(ctx); err != nil {
		return err
	}
	for _, e := range entries {
		created, err := im.Import(ctx, e)
		if err != nil {
			return err
		}
		lg.Info("Restaurant",
			zap.String("name", e.Name),
			zap.Bool("created", created),
		)
	}
	stats := im.Stats()
	lg.Info("Menu seeded",
		zap.Int("restaurants", stats.Restaurants),
		zap.Int("dishes", stats.Dishes),
		zap.Int("skipped", stats.Duplicates),
	)
	return nil
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return lg
}
