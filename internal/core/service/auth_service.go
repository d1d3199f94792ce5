package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenapp/accounts-api/internal/core/domain"
	"github.com/lumenapp/accounts-api/internal/core/ports"
	"github.com/lumenapp/accounts-api/internal/pkg/validation"
)

var _ ports.AuthService = (*AuthService)(nil)

const (
	otpAttemptWindow = 10 * time.Minute
	resetWindow      = time.Hour
)

// AuthConfig holds the product switches of the authentication flows.
type AuthConfig struct {
	RequireConfirmPassword   bool
	RequireEmailVerification bool
	OTPMaxAttempts           int
	ResetMaxPerHour          int
	// AppBaseURL prefixes the link sent in password reset emails.
	AppBaseURL string
}

// AuthDeps are the collaborators of AuthService.
type AuthDeps struct {
	Users     ports.UserRepository
	Hasher    ports.PasswordHasher
	Tokens    *TokenIssuer
	Sessions  ports.SessionIssuer
	Mailer    ports.Mailer
	Throttle  ports.Throttle
	Validator *validation.Validator
	Logger    zerolog.Logger
}

// AuthService implements registration, login, one-time codes and password
// reset.
type AuthService struct {
	users     ports.UserRepository
	hasher    ports.PasswordHasher
	tokens    *TokenIssuer
	sessions  ports.SessionIssuer
	mailer    ports.Mailer
	throttle  ports.Throttle
	validator *validation.Validator
	logger    zerolog.Logger
	cfg       AuthConfig
	newID     func() string

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(deps AuthDeps, cfg AuthConfig) *AuthService {
	if deps.Tokens == nil {
		deps.Tokens = NewTokenIssuer(nil)
	}
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	return &AuthService{
		users:     deps.Users,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		mailer:    deps.Mailer,
		throttle:  deps.Throttle,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

type loginInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,max=128"`
}

type emailInput struct {
	Email string `validate:"required,email,max=254"`
}

type verifyOTPInput struct {
	Email string `validate:"required,email,max=254"`
	OTP   string `validate:"required"`
}

type resetPasswordInput struct {
	Email    string `validate:"required,email,max=254"`
	Token    string `validate:"required"`
	Password string `validate:"min=8,max=128"`
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
	in.Firstname = strings.TrimSpace(in.Firstname)
	in.Lastname = strings.TrimSpace(in.Lastname)
	in.Email = strings.TrimSpace(in.Email)

	var extra []domain.FieldError
	if s.cfg.RequireConfirmPassword && in.ConfirmPassword != in.Password {
		extra = append(extra, domain.FieldError{Field: "confirmPassword", Message: "passwords do not match"})
	}
	if err := s.validator.Merge(in, extra...); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if domain.KindOf(err) == domain.KindHashingFailed {
			return nil, err
		}
		return nil, domain.ErrHashingFailed.Wrap(err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           s.newID(),
		Firstname:    in.Firstname,
		Lastname:     in.Lastname,
		Email:        in.Email,
		PasswordHash: hash,
		Active:       !s.cfg.RequireEmailVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", created.ID).Bool("active", created.Active).Msg("user registered")
	p := created.Profile()
	return &p, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	in := loginInput{Email: strings.TrimSpace(email), Password: password}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Keep the unknown-email path in the same timing class as a
			// wrong password.
			s.hasher.Verify(s.dummy(), in.Password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	return s.startSession(user)
}

// StartSession issues a session for an already authenticated user.
func (s *AuthService) StartSession(user *domain.User) (*ports.LoginResult, error) {
	return s.startSession(user)
}

func (s *AuthService) startSession(user *domain.User) (*ports.LoginResult, error) {
	token, expiresAt, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &ports.LoginResult{Profile: user.Profile(), Token: token, TokenExpiresAt: expiresAt}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	p := user.Profile()
	return &p, nil
}

// RequestOTP issues a fresh code, overwriting any previous one. Unknown
// addresses succeed without side effects.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	in := emailInput{Email: strings.TrimSpace(email)}
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug().Msg("otp requested for unknown email")
			return nil
		}
		return err
	}

	code, expiresAt, err := s.tokens.IssueOTP()
	if err != nil {
		return err
	}
	if err := s.users.SetOTP(ctx, user.ID, code, expiresAt); err != nil {
		return err
	}
	if err := s.throttle.Reset(ctx, otpAttemptKey(user.Email)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("reset otp attempt counter")
	}

	if err := s.mailer.SendOTP(ctx, user.Email, code, OTPTTL); err != nil {
		return domain.ErrEmailDeliveryFailed.Wrap(err)
	}
	s.logger.Info().Str("user_id", user.ID).Msg("otp issued")
	return nil
}

func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*domain.User, error) {
	in := verifyOTPInput{Email: strings.TrimSpace(email), OTP: strings.TrimSpace(code)}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if !user.HasOTP() {
		return nil, domain.ErrNoOtpRequested
	}
	if s.tokens.Expired(user.OTPExpiresAt) {
		if err := s.users.ClearOTP(ctx, user.ID); err != nil {
			return nil, err
		}
		return nil, domain.ErrExpired
	}

	if s.cfg.OTPMaxAttempts > 0 {
		allowed, err := s.throttle.Allow(ctx, otpAttemptKey(user.Email), s.cfg.OTPMaxAttempts, otpAttemptWindow)
		if err != nil {
			return nil, err
		}
		if !allowed {
			s.logger.Warn().Str("user_id", user.ID).Msg("otp attempts exhausted")
			return nil, domain.ErrTooManyAttempts
		}
	}

	if !ConstantTimeEqual(*user.OTP, in.OTP) {
		return nil, domain.ErrInvalidCode
	}

	if err := s.users.ClearOTP(ctx, user.ID); err != nil {
		return nil, err
	}
	user.OTP, user.OTPExpiresAt = nil, nil

	if !user.Active {
		if err := s.users.Activate(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Active = true
		s.logger.Info().Str("user_id", user.ID).Msg("account activated")
	}
	if err := s.throttle.Reset(ctx, otpAttemptKey(user.Email)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("reset otp attempt counter")
	}
	return user, nil
}

// RequestPasswordReset issues a reset token and mails the link. Unknown
// addresses and throttled requests succeed without side effects.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	in := emailInput{Email: strings.TrimSpace(email)}
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	if s.cfg.ResetMaxPerHour > 0 {
		allowed, err := s.throttle.Allow(ctx, resetKey(user.Email), s.cfg.ResetMaxPerHour, resetWindow)
		if err != nil {
			return err
		}
		if !allowed {
			s.logger.Warn().Str("user_id", user.ID).Msg("password reset throttled")
			return nil
		}
	}

	token, hash, expiresAt, err := s.tokens.IssueResetToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, s.resetLink(user.Email, token), ResetTokenTTL); err != nil {
		return domain.ErrEmailDeliveryFailed.Wrap(err)
	}
	s.logger.Info().Str("user_id", user.ID).Msg("password reset issued")
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	in := resetPasswordInput{Email: strings.TrimSpace(email), Token: strings.TrimSpace(token), Password: newPassword}
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidOrExpiredToken
		}
		return err
	}
	if !user.HasResetToken() {
		return domain.ErrInvalidOrExpiredToken
	}
	if s.tokens.Expired(user.ResetExpiresAt) {
		if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
			return err
		}
		return domain.ErrInvalidOrExpiredToken
	}
	if !ConstantTimeEqual(*user.ResetTokenHash, HashResetToken(in.Token)) {
		return domain.ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if domain.KindOf(err) == domain.KindHashingFailed {
			return err
		}
		return domain.ErrHashingFailed.Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

func (s *AuthService) resetLink(email, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(s.cfg.AppBaseURL, "/") + "/reset-password?" + q.Encode()
}

// dummy returns a valid hash used to burn comparable time on unknown emails.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error().Err(err).Msg("compute dummy hash")
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func otpAttemptKey(email string) string { return "otp-verify:" + email }
func resetKey(email string) string      { return "password-reset:" + email }
