package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Database clients.
const (
	ClientPostgres = "postgres"
	ClientMySQL    = "mysql"
	ClientMemory   = "memory"
)

// Per-owner lock backends. LockAuto picks the lock native to the database
// client.
const (
	LockAuto     = "auto"
	LockLocal    = "local"
	LockPostgres = "postgres"
	LockMySQL    = "mysql"
	LockRedis    = "redis"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FOODCART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (FOODCART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Database     DatabaseConfig
	Lock         LockConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// DatabaseConfig selects the entity store.
type DatabaseConfig struct {
	Client string `default:"postgres" usage:"Entity store: postgres, mysql or memory"`
	URL    string `usage:"Connection URL or DSN (FOODCART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	// LockConns sizes the separate pool behind the database-native owner
	// lock. It bounds concurrent cart mutations per replica.
	LockConns int `default:"8" usage:"Connections reserved for database owner locks"`
}

// LockConfig selects how find-or-create is serialized per cart owner.
type LockConfig struct {
	Backend  string        `default:"auto" usage:"Cart owner lock: auto, local, postgres, mysql or redis"`
	RedisURL string        `usage:"Redis URL for the redis lock backend (or REDIS_URL)" flag:"redis-url"`
	TTL      time.Duration `default:"10s" usage:"Redis lock lease"`
}

// PaymentConfig configures checkout authorization. An empty StripeKey
// disables authorization and orders are placed without a token.
type PaymentConfig struct {
	StripeKey  string        `usage:"Stripe secret key (FOODCART_PAYMENT_STRIPE_KEY or STRIPE_KEY)" flag:"stripe-key"`
	Currency   string        `default:"RSD" usage:"ISO currency of every order"`
	BaseURL    string        `usage:"Override for the Stripe API endpoint"`
	Timeout    time.Duration `default:"10s" usage:"Stripe request timeout"`
	MaxRetries int64         `default:"2" usage:"Stripe network retries"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "FOODCART"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/foodcart/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FOODCART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv("DATABASE_URL")
	}
	if c.Payment.StripeKey == "" {
		c.Payment.StripeKey = os.Getenv("STRIPE_KEY")
	}
	if c.Lock.RedisURL == "" {
		c.Lock.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ClientPostgres, ClientMySQL, ClientMemory}, c.Database.Client) {
		return errors.Errorf("unknown database client %q", c.Database.Client)
	}
	if c.Database.Client != ClientMemory && c.Database.URL == "" {
		return errors.New("database URL is required: set FOODCART_DATABASE_URL or DATABASE_URL")
	}

	switch c.Lock.Backend {
	case LockAuto, LockLocal:
	case LockPostgres, LockMySQL:
		if c.Lock.Backend != c.Database.Client {
			return errors.Errorf("lock backend %q requires the %s database client", c.Lock.Backend, c.Lock.Backend)
		}
	case LockRedis:
		if c.Lock.RedisURL == "" {
			return errors.New("redis lock backend requires FOODCART_LOCK_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if len(c.Payment.Currency) != 3 {
		return errors.Errorf("invalid currency %q", c.Payment.Currency)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}
