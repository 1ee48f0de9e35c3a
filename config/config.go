package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is the runtime configuration of the api
type Config struct {
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`
	StripePriceID       string `env:"STRIPE_PRICE_ID,required,notEmpty"`

	PostgresURI   string `env:"POSTGRES_URI,required,notEmpty"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required,notEmpty"`

	ListenAddr         string   `env:"LISTEN_ADDR" envDefault:":42069"`
	DefaultOrigin      string   `env:"DEFAULT_ORIGIN" envDefault:"http://localhost:3000"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	RedisURI        string        `env:"REDIS_URI"`
	RedisPassword   string        `env:"REDIS_PW"`
	WebhookEventTTL time.Duration `env:"WEBHOOK_EVENT_TTL" envDefault:"72h"`

	SentryDSN string `env:"SENTRY_DSN"`
}

// LedgerEnabled is true when Redis is configured for the webhook event ledger
func (c *Config) LedgerEnabled() bool {
	return c.RedisURI != ""
}

// Load reads dotFile into the environment if it exists, then parses Config.
// Variables already set in the environment take precedence over dotFile
func Load(dotFile string) (*Config, error) {
	if dotFile != "" {
		if _, err := os.Stat(dotFile); err == nil {
			if err := godotenv.Load(dotFile); err != nil {
				return nil, errors.Wrap(err, "Cannot load configurations from "+dotFile)
			}
		}
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "Cannot parse configurations")
	}
	return &c, nil
}
