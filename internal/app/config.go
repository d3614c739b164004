package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-commerce/internal/domain/discount"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string        `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr      string        `default:"" usage:"Redis address for idempotency keys, empty disables them" flag:"redis-addr"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long an Idempotency-Key is remembered" flag:"idempotency-ttl"`
	Kafka          KafkaConfig
	Auth           AuthConfig
	Discount       DiscountConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// KafkaConfig controls order event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses"`
	Topic   string   `default:"kart.orders" usage:"Topic for order events"`
}

// AuthConfig controls bearer tokens and password hashing.
type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET" usage:"HMAC secret for access tokens (KART_AUTH_JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL   time.Duration `default:"24h" usage:"Access token lifetime" flag:"token-ttl"`
	BcryptCost int           `default:"10" usage:"bcrypt cost for password hashes" flag:"bcrypt-cost"`
}

// DiscountConfig holds the discount stack tunables. Window bounds are
// RFC 3339 timestamps and are exclusive.
type DiscountConfig struct {
	WindowStart        string  `default:"2025-06-01T00:00:00Z" usage:"Promotional window start (exclusive)"`
	WindowEnd          string  `default:"2025-07-01T00:00:00Z" usage:"Promotional window end (exclusive)"`
	RandomProbability  float64 `default:"0.5" usage:"Chance of the random discount for opted-in orders"`
	RandomSeed         uint64  `default:"0" usage:"Seed for the random discount draw, 0 uses the global generator"`
	FrequentMinOrders  int     `default:"5" usage:"Orders within the lookback that make a customer frequent"`
	FrequentWindowDays int     `default:"30" usage:"Frequent customer lookback in days"`
}

// Evaluator converts the section into discount.Config.
func (c DiscountConfig) Evaluator() (discount.Config, error) {
	start, err := time.Parse(time.RFC3339, c.WindowStart)
	if err != nil {
		return discount.Config{}, errors.Wrap(err, "parse window start")
	}
	end, err := time.Parse(time.RFC3339, c.WindowEnd)
	if err != nil {
		return discount.Config{}, errors.Wrap(err, "parse window end")
	}
	if !end.After(start) {
		return discount.Config{}, errors.Errorf("window end %s is not after start %s", c.WindowEnd, c.WindowStart)
	}
	if c.RandomProbability < 0 || c.RandomProbability > 1 {
		return discount.Config{}, errors.Errorf("random probability %v is outside [0,1]", c.RandomProbability)
	}
	if c.FrequentMinOrders < 1 || c.FrequentWindowDays < 1 {
		return discount.Config{}, errors.New("frequent min orders and window days must be positive")
	}
	return discount.Config{
		WindowStart:        start,
		WindowEnd:          end,
		RandomProbability:  c.RandomProbability,
		FrequentMinOrders:  c.FrequentMinOrders,
		FrequentWindowDays: c.FrequentWindowDays,
	}, nil
}

// Source returns the random source for the discount draw.
func (c DiscountConfig) Source() discount.RandomSource {
	if c.RandomSeed == 0 {
		return discount.GlobalSource
	}
	return discount.NewSeededSource(c.RandomSeed)
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required: set KART_AUTH_JWT_SECRET")
	}
	if _, err := c.Discount.Evaluator(); err != nil {
		return errors.Wrap(err, "discount")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
