package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// VerificationState is the position of a user in the email verification flow.
type VerificationState string

const (
	VerificationNone     VerificationState = "none"
	VerificationPending  VerificationState = "pending"
	VerificationVerified VerificationState = "verified"
)

// User is the credential record. Verification fields are only set while a
// verification is pending and are cleared once the email is confirmed.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                         int64      `bun:"id,pk,autoincrement" json:"id"`
	Email                      string     `bun:"email,notnull,unique" json:"email"`
	Name                       *string    `bun:"name" json:"name"`
	PasswordHash               string     `bun:"password,notnull" json:"-"`
	IsEmailVerified            bool       `bun:"is_email_verified,notnull" json:"isEmailVerified"`
	EmailVerificationToken     *string    `bun:"email_verification_token,unique" json:"-"`
	EmailVerificationExpires   *time.Time `bun:"email_verification_expires" json:"-"`
	VerificationAttempts       int        `bun:"verification_attempts,notnull" json:"-"`
	LastVerificationEmailSent  *time.Time `bun:"last_verification_email_sent" json:"-"`
	ConsumedVerificationDigest *string    `bun:"consumed_verification_digest" json:"-"`
	CreatedAt                  time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt                  time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// VerificationState derives the flow state from the stored fields.
func (u *User) VerificationState() VerificationState {
	switch {
	case u.IsEmailVerified:
		return VerificationVerified
	case u.EmailVerificationToken != nil:
		return VerificationPending
	default:
		return VerificationNone
	}
}

// PendingToken returns the stored token when it is still valid at now.
func (u *User) PendingToken(now time.Time) (string, bool) {
	if u.EmailVerificationToken == nil || u.EmailVerificationExpires == nil {
		return "", false
	}
	if !u.EmailVerificationExpires.After(now) {
		return "", false
	}
	return *u.EmailVerificationToken, true
}

// UserProfile is the public view returned by /auth/profile.
type UserProfile struct {
	ID              int64   `json:"id"`
	Email           string  `json:"email"`
	Name            *string `json:"name"`
	IsEmailVerified bool    `json:"isEmailVerified"`
}

// UserSummary is the public view returned by /auth/users.
type UserSummary struct {
	ID    int64   `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}
