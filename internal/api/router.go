package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/lumenapp/accounts-api/internal/api/handler"
	"github.com/lumenapp/accounts-api/internal/api/middleware"
	"github.com/lumenapp/accounts-api/internal/core/ports"
	"github.com/lumenapp/accounts-api/internal/pkg/validation"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth     ports.AuthService
	Billing  ports.BillingService
	Sessions ports.SessionIssuer
	// Health maps a dependency name to its readiness check.
	Health      map[string]handler.Pinger
	AuthOptions handler.AuthOptions
	Logger      zerolog.Logger
	// Registry receives the HTTP metrics. Nil means the default registry.
	Registry *prometheus.Registry
	// Swagger mounts the API docs under /swagger.
	Swagger bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))

	promCfg := echoprometheus.MiddlewareConfig{Subsystem: "accounts"}
	handlerCfg := echoprometheus.HandlerConfig{}
	if deps.Registry != nil {
		promCfg.Registerer = deps.Registry
		handlerCfg.Gatherer = deps.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(promCfg))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(handlerCfg))

	if deps.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	session := middleware.Session(deps.Sessions)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.AuthOptions, deps.Logger)
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me, session)
	auth.POST("/send-otp", authHandler.SendOTP)
	auth.POST("/verify-otp", authHandler.VerifyOTP)
	auth.POST("/password-forgot", authHandler.PasswordForgot)
	auth.POST("/password-reset", authHandler.PasswordReset)

	// --- Billing routes (session required) ---
	billingHandler := handler.NewBillingHandler(deps.Billing)
	billing := e.Group("/billing", session)
	billing.POST("/checkout", billingHandler.Checkout)
	billing.POST("/subscriptions/confirm", billingHandler.ConfirmCheckout)
	billing.GET("/subscriptions", billingHandler.ListSubscriptions, middleware.OwnerQuery())
	billing.GET("/subscriptions/active", billingHandler.ListActive, middleware.OwnerQuery())
	billing.DELETE("/subscriptions", billingHandler.CancelSubscription)
	billing.PATCH("/subscriptions", billingHandler.ReactivateSubscription)
	billing.GET("/invoices", billingHandler.ListInvoices, middleware.OwnerQuery())
	billing.DELETE("/invoices", billingHandler.VoidInvoice)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(deps.Health)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
