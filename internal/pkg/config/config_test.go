package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": secret,
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.True(t, cfg.Auth.RequireConfirmPassword)
	assert.False(t, cfg.Auth.RequireEmailVerification)
	assert.False(t, cfg.Auth.OTPIssuesSession)
	assert.Equal(t, 5, cfg.Auth.OTPMaxAttempts)
	assert.Equal(t, 3, cfg.Auth.ResetMaxPerHour)
	assert.Equal(t, 30, cfg.Billing.SubscriptionDays)
	assert.Equal(t, time.Hour, cfg.Billing.SyncInterval)
	assert.Empty(t, cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWith_PlansAndOverrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET":                secret,
		"STORE_DRIVER":                  "postgres",
		"POSTGRES_DSN":                  "postgres://u:p@localhost/accounts",
		"BILLING_PLANS":                 "price_basic:Basic,price_pro:Pro",
		"AUTH_REQUIRE_CONFIRM_PASSWORD": "false",
		"SESSION_TTL":                   "5m",
	}))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"price_basic": "Basic", "price_pro": "Pro"}, cfg.Billing.Plans)
	assert.False(t, cfg.Auth.RequireConfirmPassword)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.Session.Secret = "short" }, "SESSION_SECRET"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, "STORE_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = DriverPostgres }, "POSTGRES_DSN"},
		{"memory in production", func(c *Config) {
			c.StoreDriver = DriverMemory
			c.Env = "production"
			c.Stripe.SecretKey = "sk_live_x"
		}, "memory driver"},
		{"production without stripe", func(c *Config) { c.Env = "Production" }, "STRIPE_SECRET_KEY"},
		{"negative attempts", func(c *Config) { c.Auth.OTPMaxAttempts = -1 }, "AUTH_OTP_MAX_ATTEMPTS"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{"SESSION_SECRET": secret}))
			require.NoError(t, err)
			tc.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want), "error %q should mention %q", err, tc.want)
		})
	}
}
