package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/lumenapp/accounts-api/docs"
	"github.com/lumenapp/accounts-api/internal/api"
	"github.com/lumenapp/accounts-api/internal/api/handler"
	"github.com/lumenapp/accounts-api/internal/api/metrics"
	"github.com/lumenapp/accounts-api/internal/core/ports"
	"github.com/lumenapp/accounts-api/internal/core/service"
	"github.com/lumenapp/accounts-api/internal/infrastructure/db/memory"
	"github.com/lumenapp/accounts-api/internal/infrastructure/db/mongo"
	"github.com/lumenapp/accounts-api/internal/infrastructure/db/postgres"
	"github.com/lumenapp/accounts-api/internal/infrastructure/db/redis"
	"github.com/lumenapp/accounts-api/internal/infrastructure/email"
	"github.com/lumenapp/accounts-api/internal/infrastructure/payment/stripe"
	"github.com/lumenapp/accounts-api/internal/infrastructure/queue"
	"github.com/lumenapp/accounts-api/internal/pkg/config"
	"github.com/lumenapp/accounts-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// @title        Accounts API
// @version      1.0
// @description  Registration, sessions, one-time codes, password reset and subscription billing.
// @host         localhost:8080
// @BasePath     /
func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "accounts-api",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// store is the record store selected by STORE_DRIVER.
type store struct {
	users ports.UserRepository
	subs  ports.SubscriptionRepository
	ping  handler.Pinger
	close func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := mongo.Open(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		return &store{users: s.Users, subs: s.Subscriptions, ping: s, close: s.Close}, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return &store{users: s.Users, subs: s.Subscriptions, ping: s, close: s.Close}, nil
	case config.DriverMemory:
		users := memory.NewUserStore()
		return &store{
			users: users,
			subs:  memory.NewSubscriptionStore(),
			ping:  users,
			close: func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newMailer(cfg config.SMTPConfig, log zerolog.Logger) (ports.Mailer, error) {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP_HOST not set, emails are written to the log")
		return email.NewLogMailer(log), nil
	}
	return email.NewSMTPMailer(email.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		TLS:      cfg.TLS,
		AppName:  cfg.AppName,
	})
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	health := map[string]handler.Pinger{"store": st.ping}

	var (
		throttle ports.Throttle = memory.NewThrottle()
		locker   ports.Locker   = memory.NewLocker()
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func(c *goredis.Client) { _ = c.Close() }(rdb)
		throttle = redis.NewThrottle(rdb)
		locker = redis.NewLocker(rdb, log)
		health["redis"] = handler.PingFunc(redis.HealthCheck(rdb))
	} else {
		log.Warn().Msg("REDIS_ADDR not set, throttling and locks are per process")
	}

	mailer, err := newMailer(cfg.SMTP, log)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	processor := stripe.New(cfg.Stripe.SecretKey, nil)
	sessions := service.NewSessionIssuer(cfg.Session.Secret, cfg.Session.TTL, nil)

	authSvc := service.NewAuthService(service.AuthDeps{
		Users:    st.users,
		Hasher:   service.NewArgon2Hasher(service.DefaultArgon2Params()),
		Sessions: sessions,
		Mailer:   mailer,
		Throttle: throttle,
		Logger:   log.With().Str("component", "auth").Logger(),
	}, service.AuthConfig{
		RequireConfirmPassword:   cfg.Auth.RequireConfirmPassword,
		RequireEmailVerification: cfg.Auth.RequireEmailVerification,
		OTPMaxAttempts:           cfg.Auth.OTPMaxAttempts,
		ResetMaxPerHour:          cfg.Auth.ResetMaxPerHour,
		AppBaseURL:               cfg.AppBaseURL,
	})

	billingSvc := service.NewBillingService(st.users, st.subs, processor, locker,
		log.With().Str("component", "billing").Logger(),
		service.BillingConfig{
			AppBaseURL:       cfg.AppBaseURL,
			Plans:            cfg.Billing.Plans,
			AllowUnknownPlan: cfg.Billing.AllowUnknownPlan,
			SubscriptionDays: cfg.Billing.SubscriptionDays,
		})

	// --- Subscription reconciliation ---
	syncLog := log.With().Str("component", "subscription_sync").Logger()
	syncer := service.NewSubscriptionSyncer(st.subs, processor, syncLog, func(o service.SyncOutcome) {
		metrics.SubscriptionSyncTotal.WithLabelValues(string(o)).Inc()
	})
	dispatcher := queue.NewDispatcher(cfg.Billing.SyncWorkers, syncer, syncLog)
	dispatcher.Start(ctx)
	scheduler := service.NewSyncScheduler(st.subs, dispatcher, cfg.Billing.SyncInterval, syncLog).
		OnPass(func(took time.Duration) { metrics.SubscriptionSyncDuration.Observe(took.Seconds()) })
	go scheduler.Run(ctx)

	e := api.NewRouter(api.Deps{
		Auth:     authSvc,
		Billing:  billingSvc,
		Sessions: sessions,
		Health:   health,
		AuthOptions: handler.AuthOptions{
			Cookie:           handler.CookieConfig{Secure: cfg.IsProduction()},
			OTPIssuesSession: cfg.Auth.OTPIssuesSession,
		},
		Logger:  log,
		Swagger: !cfg.IsProduction(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		dispatcher.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	dispatcher.Wait()
	return nil
}
