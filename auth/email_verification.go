package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spectra/logging"
	"github.com/uptrace/bun"
)

const (
	verificationTokenBytes = 32
	maxTokenMintRetries    = 10
)

// ErrTokenMintExhausted is returned when every minted token collided.
var ErrTokenMintExhausted = errors.New("could not mint a unique verification token", errors.CategoryInternal).
	WithTextCode("verification_token_mint_exhausted").
	WithCode(errors.CodeInternal)

// EmailVerifier drives the verification token lifecycle for a user:
// Generate, Verify and Resend.
type EmailVerifier struct {
	users       Users
	tx          TxRunner
	mailer      Mailer
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
	mintToken   func() (string, error)
	logger      logging.Logger
	activity    ActivitySink
}

// VerifierOption configures an EmailVerifier.
type VerifierOption func(*EmailVerifier)

// WithVerificationConfig applies ttl, cooldown and attempt limits from cfg.
func WithVerificationConfig(cfg VerificationConfig) VerifierOption {
	return func(v *EmailVerifier) {
		if cfg == nil {
			return
		}
		if ttl := cfg.GetVerificationTokenTTL(); ttl > 0 {
			v.ttl = ttl
		}
		if cooldown := cfg.GetVerificationResendCooldown(); cooldown >= 0 {
			v.cooldown = cooldown
		}
		if max := cfg.GetVerificationMaxAttempts(); max > 0 {
			v.maxAttempts = max
		}
	}
}

// WithVerifierClock overrides the clock.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *EmailVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithTokenSource overrides token minting.
func WithTokenSource(mint func() (string, error)) VerifierOption {
	return func(v *EmailVerifier) {
		if mint != nil {
			v.mintToken = mint
		}
	}
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger logging.Logger) VerifierOption {
	return func(v *EmailVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithVerifierActivitySink sets the activity sink.
func WithVerifierActivitySink(sink ActivitySink) VerifierOption {
	return func(v *EmailVerifier) {
		v.activity = normalizeActivitySink(sink)
	}
}

// NewEmailVerifier wires the verification flow. Defaults: one hour token
// ttl, two minute resend cooldown, three attempts.
func NewEmailVerifier(users Users, tx TxRunner, mailer Mailer, opts ...VerifierOption) *EmailVerifier {
	v := &EmailVerifier{
		users:       users,
		tx:          tx,
		mailer:      mailer,
		ttl:         time.Hour,
		cooldown:    2 * time.Minute,
		maxAttempts: 3,
		now:         time.Now,
		mintToken:   NewVerificationToken,
		logger:      logging.Console("AUTH"),
		activity:    noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// NewVerificationToken returns 32 random bytes, hex encoded.
func NewVerificationToken() (string, error) {
	b := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Generate mints and stores a new pending token for userID, bumping the
// attempt counter. The store is checked for collisions inside a
// transaction, retrying a bounded number of times.
func (v *EmailVerifier) Generate(ctx context.Context, userID int64) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var token string
	expires := v.now().Add(v.ttl)

	err := v.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		token, err = v.mintUnique(ctx, tx)
		if err != nil {
			return err
		}
		return v.users.SetVerificationTokenTx(ctx, tx, userID, token, expires)
	})
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.TextCode == ErrTokenMintExhausted.TextCode {
			return "", err
		}
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to store verification token").
			WithMetadata(map[string]any{"user_id": userID})
	}

	return token, nil
}

func (v *EmailVerifier) mintUnique(ctx context.Context, tx bun.IDB) (string, error) {
	for i := 0; i < maxTokenMintRetries; i++ {
		token, err := v.mintToken()
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to mint verification token")
		}

		_, err = v.users.GetByVerificationTokenTx(ctx, tx, token)
		if repository.IsRecordNotFound(err) {
			return token, nil
		}
		if err != nil {
			return "", err
		}

		v.logger.Warn("verification token collision, retrying", "attempt", i+1)
	}
	return "", ErrTokenMintExhausted
}

// SendVerification generates a token for user, mails it and records the
// send time. lastSent is only written once the mailer succeeded.
func (v *EmailVerifier) SendVerification(ctx context.Context, user *User) error {
	token, err := v.Generate(ctx, user.ID)
	if err != nil {
		return err
	}
	return v.deliver(ctx, user, token)
}

func (v *EmailVerifier) deliver(ctx context.Context, user *User, token string) error {
	if err := v.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		v.logger.Error("verification email dispatch failed", "user_id", user.ID, "error", err)
		return errors.Wrap(err, errors.CategoryOperation, "failed to send verification email").
			WithTextCode("verification_mail_failed").
			WithCode(errors.CodeInternal)
	}

	if err := v.users.TouchVerificationSent(ctx, user.ID, v.now()); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to record verification send time")
	}

	v.record(ctx, ActivityEventVerificationSent, user.ID, nil)

	return nil
}

// Verify consumes token and marks its owner verified.
func (v *EmailVerifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	digest := ConsumedTokenDigest(token)

	user, err := v.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up verification token")
		}
		if _, err := v.users.GetByConsumedVerificationDigest(ctx, digest); err == nil {
			return nil, ErrEmailAlreadyVerified
		}
		return nil, ErrInvalidVerificationToken
	}

	if user.IsEmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	if user.EmailVerificationExpires == nil || user.EmailVerificationExpires.Before(v.now()) {
		return nil, ErrVerificationExpired
	}

	if err := v.users.MarkEmailVerified(ctx, user.ID, token, digest); err != nil {
		if repository.IsRecordNotFound(err) {
			// a concurrent call consumed the token first
			return nil, ErrEmailAlreadyVerified
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mark email verified")
	}

	user.IsEmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpires = nil
	user.VerificationAttempts = 0
	user.LastVerificationEmailSent = nil
	user.ConsumedVerificationDigest = &digest

	v.record(ctx, ActivityEventEmailVerified, user.ID, nil)

	return user, nil
}

// Resend re-sends the pending token while it is valid, otherwise it runs
// a full Generate. Cooldown and attempt limits are checked first.
func (v *EmailVerifier) Resend(ctx context.Context, email string) error {
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to look up user")
	}

	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	now := v.now()

	if user.LastVerificationEmailSent != nil {
		elapsed := now.Sub(*user.LastVerificationEmailSent)
		if elapsed < v.cooldown {
			remaining := int(math.Ceil((v.cooldown - elapsed).Seconds()))
			if remaining < 1 {
				remaining = 1
			}
			return NewCooldownError(remaining)
		}
	}

	if user.VerificationAttempts >= v.maxAttempts {
		return NewAttemptsExceededError(v.maxAttempts)
	}

	if token, ok := user.PendingToken(now); ok {
		v.logger.Debug("re-sending pending verification token", "user_id", user.ID)
		return v.deliver(ctx, user, token)
	}

	return v.SendVerification(ctx, user)
}

// ConsumedTokenDigest is the value stored once a token has been used, so
// a replayed link can be told apart from an unknown one.
func ConsumedTokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (v *EmailVerifier) record(ctx context.Context, eventType ActivityEventType, userID int64, metadata map[string]any) {
	err := v.activity.Record(ctx, ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: v.now(),
	})
	if err != nil {
		v.logger.Warn("activity sink failed", "event", eventType, "error", err)
	}
}
