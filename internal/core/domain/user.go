package domain

import "time"

// User is the identity and credential record.
//
// OTP/OTPExpiresAt and ResetTokenHash/ResetExpiresAt are always written and
// cleared in pairs by the repository.
type User struct {
	ID                string     `json:"id"`
	Firstname         string     `json:"firstname"`
	Lastname          string     `json:"lastname"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Active            bool       `json:"-"`
	OTP               *string    `json:"-"`
	OTPExpiresAt      *time.Time `json:"-"`
	ResetTokenHash    *string    `json:"-"`
	ResetExpiresAt    *time.Time `json:"-"`
	BillingCustomerID *string    `json:"-"`
	CreatedAt         time.Time  `json:"-"`
	UpdatedAt         time.Time  `json:"-"`
}

// DisplayName is the name sent to the payment processor.
func (u *User) DisplayName() string {
	switch {
	case u.Firstname == "":
		return u.Lastname
	case u.Lastname == "":
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}

// HasOTP reports whether an OTP is pending, regardless of expiry.
func (u *User) HasOTP() bool {
	return u.OTP != nil && u.OTPExpiresAt != nil
}

// HasResetToken reports whether a reset token is pending, regardless of expiry.
func (u *User) HasResetToken() bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil
}

// Profile is the public view of a user. It never carries credentials.
type Profile struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
	}
}
