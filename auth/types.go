package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// TokenConfig holds the settings used to sign session tokens.
type TokenConfig interface {
	GetSigningKey() []byte
	GetSigningMethod() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// VerificationConfig holds the email verification limits.
type VerificationConfig interface {
	GetVerificationTokenTTL() time.Duration
	GetVerificationResendCooldown() time.Duration
	GetVerificationMaxAttempts() int
}

// CookieConfig holds the refresh cookie attributes.
type CookieConfig interface {
	GetCookieName() string
	GetCookieDomain() string
	GetCookieSecure() bool
	GetCookieSameSite() string
	GetRefreshTokenTTL() time.Duration
}

// Config is the full set of settings consumed by this package.
type Config interface {
	TokenConfig
	VerificationConfig
	CookieConfig
}

// Mailer delivers the verification link for a token.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, email, token string) error

func (f MailerFunc) SendVerificationEmail(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

// TxRunner runs f inside a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// PasswordHasher hashes and checks passwords. Parameters travel inside
// the encoded hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService signs and validates session tokens.
type TokenService interface {
	Sign(userID int64, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
	IssuePair(userID int64) (TokenPair, error)
}
