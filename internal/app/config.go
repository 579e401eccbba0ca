package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (RENTAL_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `env:"DATABASE_URL" usage:"PostgreSQL connection URL (RENTAL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `env:"API_KEY_PEPPER" usage:"HMAC pepper for API key hashing (RENTAL_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	Booking      BookingConfig
	Graceful     GracefulConfig
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP instead of the
	// peer address. Enable only behind a proxy that sets those headers.
	TrustProxy bool `default:"false" usage:"Key rate limits by forwarded client address"`
}

// BookingConfig controls the booking transactions.
type BookingConfig struct {
	TxTimeout time.Duration `default:"5s" usage:"Upper bound for one booking or cancellation" flag:"booking-tx-timeout"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files,
// then applies platform fallbacks.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RENTAL",
		Files:     []string{"config.yaml", "/etc/rental/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set RENTAL_DATABASE_URL or DATABASE_URL")
	case c.APIKeyPepper == "":
		return errors.New("API key pepper is required: set RENTAL_API_KEY_PEPPER")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.Booking.TxTimeout <= 0:
		return errors.New("booking tx timeout must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables set by
// hosting platforms onto the configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
