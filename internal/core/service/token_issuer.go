package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	OTPTTL        = 10 * time.Minute
	ResetTokenTTL = 60 * time.Minute

	otpMin         = 100000
	otpMax         = 999999
	resetTokenSize = 32 // 256 bits
)

// TokenIssuer generates one-time codes and password reset tokens.
type TokenIssuer struct {
	now  func() time.Time
	rand func([]byte) (int, error)
}

func NewTokenIssuer(now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{now: now, rand: rand.Read}
}

// IssueOTP returns a 6-digit code uniform over [100000, 999999] and its expiry.
func (ti *TokenIssuer) IssueOTP() (string, time.Time, error) {
	n, err := rand.Int(readerFunc(ti.rand), big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+otpMin)
	return code, ti.now().UTC().Add(OTPTTL), nil
}

// IssueResetToken returns a hex-encoded 256-bit token, the digest to persist,
// and the expiry.
func (ti *TokenIssuer) IssueResetToken() (token, hash string, expiresAt time.Time, err error) {
	b := make([]byte, resetTokenSize)
	if _, err := ti.rand(b); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashResetToken(token), ti.now().UTC().Add(ResetTokenTTL), nil
}

// Expired reports whether a stored expiry no longer admits use. A nil expiry
// never admits use.
func (ti *TokenIssuer) Expired(expiresAt *time.Time) bool {
	return expiresAt == nil || ti.now().After(*expiresAt)
}

// HashResetToken is the at-rest form of a reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares secrets without leaking the mismatch position.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
