package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const minSessionSecret = 32

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port       string `env:"PORT,         default=8080"`
	Env        string `env:"ENV,          default=development"`
	LogLevel   string `env:"LOG_LEVEL,    default=info"`
	LogPretty  bool   `env:"LOG_PRETTY,   default=false"`
	AppBaseURL string `env:"APP_BASE_URL, default=http://localhost:3000"`

	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Session  SessionConfig
	Auth     AuthConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Billing  BillingConfig
	SMTP     SMTPConfig
}

type SessionConfig struct {
	Secret string        `env:"SESSION_SECRET"`
	TTL    time.Duration `env:"SESSION_TTL, default=15m"`
}

type AuthConfig struct {
	RequireConfirmPassword   bool `env:"AUTH_REQUIRE_CONFIRM_PASSWORD,   default=true"`
	RequireEmailVerification bool `env:"AUTH_REQUIRE_EMAIL_VERIFICATION, default=false"`
	OTPIssuesSession         bool `env:"AUTH_OTP_ISSUES_SESSION,         default=false"`
	OTPMaxAttempts           int  `env:"AUTH_OTP_MAX_ATTEMPTS,           default=5"`
	ResetMaxPerHour          int  `env:"AUTH_RESET_MAX_PER_HOUR,         default=3"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

// RedisConfig is optional; an empty address selects in-process throttling and
// locking, which is only correct for a single replica.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY"`
}

type BillingConfig struct {
	// Plans maps price ids to plan labels: "price_123:Basic,price_456:Pro".
	Plans            map[string]string `env:"BILLING_PLANS"`
	SubscriptionDays int               `env:"BILLING_SUBSCRIPTION_DAYS,  default=30"`
	AllowUnknownPlan bool              `env:"BILLING_ALLOW_UNKNOWN_PLAN, default=false"`
	SyncInterval     time.Duration     `env:"BILLING_SYNC_INTERVAL,      default=1h"`
	SyncWorkers      int               `env:"BILLING_SYNC_WORKERS,       default=4"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,     default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,     default=no-reply@localhost"`
	TLS      string `env:"SMTP_TLS,      default=mandatory"`
	AppName  string `env:"SMTP_APP_NAME, default=Lumen"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks rules that span fields or depend on the selected driver.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Session.Secret) < minSessionSecret {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecret))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required for the mongo driver"))
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres driver"))
		}
	case DriverMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("the memory driver is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.IsProduction() && c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required in production"))
	}
	if c.Billing.SubscriptionDays <= 0 {
		errs = append(errs, errors.New("BILLING_SUBSCRIPTION_DAYS must be positive"))
	}
	if c.Billing.SyncInterval < 0 {
		errs = append(errs, errors.New("BILLING_SYNC_INTERVAL must not be negative"))
	}
	if c.Auth.OTPMaxAttempts < 0 || c.Auth.ResetMaxPerHour < 0 {
		errs = append(errs, errors.New("AUTH_OTP_MAX_ATTEMPTS and AUTH_RESET_MAX_PER_HOUR must not be negative"))
	}

	return errors.Join(errs...)
}
