package domain

import "time"

// SessionClaims are the identity assertions carried by a session token. They
// are not authoritative for mutable profile fields; callers re-read the user.
type SessionClaims struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
