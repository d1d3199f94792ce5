package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/api/metrics"
	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
)

const (
	otpSentMessage   = "If the email is registered, a verification code has been sent"
	resetSentMessage = "If the email is registered, a password reset link has been sent"
	resetDoneMessage = "Password has been reset"
	loggedOutMessage = "Logged out"
)

// AuthOptions are the product switches the HTTP layer needs.
type AuthOptions struct {
	Cookie CookieConfig
	// OTPIssuesSession sets the session cookie on a successful OTP verification.
	OTPIssuesSession bool
}

type AuthHandler struct {
	authService ports.AuthService
	opts        AuthOptions
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, opts AuthOptions, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, opts: opts, log: log}
}

type registerRequest struct {
	Firstname       string `json:"firstname"`
	Lastname        string `json:"lastname"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type meResponse struct {
	User domain.Profile `json:"user"`
}

type verifyOTPResponse struct {
	UserID string `json:"userId"`
}

func observe(op string, err error) {
	metrics.AuthAttemptsTotal.WithLabelValues(op, metrics.Result(string(domain.KindOf(err)), err)).Inc()
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration form"
// @Success      201   {object}  domain.Profile
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	profile, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Firstname:       req.Firstname,
		Lastname:        req.Lastname,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	observe("register", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, profile)
}

// Login authenticates a user and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  domain.Profile
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	observe("login", err)
	if err != nil {
		return err
	}

	setSessionCookie(c, h.opts.Cookie, res.Token, res.TokenExpiresAt)
	metrics.SessionsIssuedTotal.WithLabelValues("login").Inc()
	return c.JSON(http.StatusOK, res.Profile)
}

// Logout clears the session cookie. Tokens are not revoked server side.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	clearSessionCookie(c, h.opts.Cookie)
	return c.JSON(http.StatusOK, messageResponse{Message: loggedOutMessage})
}

// Me returns the profile of the session user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]any
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := sessionUser(c)
	if err != nil {
		return err
	}
	profile, err := h.authService.Me(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{User: *profile})
}

// SendOTP mails a one-time code. The answer does not reveal whether the
// address is registered.
//
// @Summary      Request a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Router       /auth/send-otp [post]
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.RequestOTP(c.Request().Context(), req.Email)
	observe("send_otp", err)
	if err := h.swallow(c, "send_otp", err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: otpSentMessage})
}

// VerifyOTP checks a one-time code.
//
// @Summary      Verify a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyOTPRequest  true  "Email and code"
// @Success      200   {object}  verifyOTPResponse
// @Failure      400   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Failure      429   {object}  map[string]any
// @Router       /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.VerifyOTP(c.Request().Context(), req.Email, req.OTP)
	observe("verify_otp", err)
	if err != nil {
		return err
	}

	if h.opts.OTPIssuesSession {
		res, err := h.authService.StartSession(user)
		if err != nil {
			return err
		}
		setSessionCookie(c, h.opts.Cookie, res.Token, res.TokenExpiresAt)
		metrics.SessionsIssuedTotal.WithLabelValues("otp").Inc()
	}
	return c.JSON(http.StatusOK, verifyOTPResponse{UserID: user.ID})
}

// PasswordForgot mails a reset link. The answer does not reveal whether the
// address is registered.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Router       /auth/password-forgot [post]
func (h *AuthHandler) PasswordForgot(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email)
	observe("password_forgot", err)
	if err := h.swallow(c, "password_forgot", err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: resetSentMessage})
}

// PasswordReset sets a new password using a mailed token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Email, token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Router       /auth/password-reset [post]
func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.authService.ResetPassword(c.Request().Context(), req.Email, req.Token, req.Password)
	observe("password_reset", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: resetDoneMessage})
}

// swallow keeps the anti-enumeration routes on their generic answer: only
// input validation errors reach the client, everything else is logged.
func (h *AuthHandler) swallow(c echo.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) == domain.KindValidation {
		return err
	}
	h.log.Error().
		Err(err).
		Str("operation", op).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("suppressed error on anti-enumeration route")
	return nil
}
