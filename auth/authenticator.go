package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/persistence"
)

// Authenticator implements registration, password login and token refresh.
type Authenticator struct {
	users    Users
	hasher   PasswordHasher
	tokens   TokenService
	verifier *EmailVerifier
	now      func() time.Time
	logger   logging.Logger
	activity ActivitySink
}

// NewAuthenticator wires the login flow.
func NewAuthenticator(users Users, hasher PasswordHasher, tokens TokenService, verifier *EmailVerifier) *Authenticator {
	return &Authenticator{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		now:      time.Now,
		logger:   logging.Console("AUTH"),
		activity: noopActivitySink{},
	}
}

func (s *Authenticator) WithLogger(logger logging.Logger) *Authenticator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *Authenticator) WithClock(now func() time.Time) *Authenticator {
	if now != nil {
		s.now = now
	}
	return s
}

// Verifier exposes the verification state machine.
func (s *Authenticator) Verifier() *EmailVerifier {
	return s.verifier
}

// Register creates an unverified account and mails a verification link.
// When the mail step fails the account is kept and the error is returned;
// the user can recover through resend.
func (s *Authenticator) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up user")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	name := email
	user, err := s.users.Create(ctx, &User{
		Email:        email,
		Name:         &name,
		PasswordHash: hash,
	})
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	s.emitAuthEvent(ctx, ActivityEventRegistered, user.ID, map[string]any{"email": email})

	if err := s.verifier.SendVerification(ctx, user); err != nil {
		s.logger.Error("Register verification step failed", "user_id", user.ID, "error", err)
		return user, err
	}

	return user, nil
}

// Login checks credentials and issues a token pair for verified users.
func (s *Authenticator) Login(ctx context.Context, email, password string) (*User, TokenPair, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return nil, TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to look up user")
		}
		s.loginFailed(ctx, 0, email, ErrInvalidCredentials)
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("Login password verify error", "user_id", user.ID, "error", err)
		return nil, TokenPair{}, err
	}
	if !ok {
		s.loginFailed(ctx, user.ID, email, ErrInvalidCredentials)
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if !user.IsEmailVerified {
		s.loginFailed(ctx, user.ID, email, ErrEmailNotVerified)
		return nil, TokenPair{}, ErrEmailNotVerified
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID, map[string]any{"email": email})

	return user, pair, nil
}

// Refresh validates a refresh token and issues a new pair. The owner must
// still exist and be verified.
func (s *Authenticator) Refresh(ctx context.Context, refreshToken string) (*User, TokenPair, error) {
	if refreshToken == "" {
		return nil, TokenPair{}, ErrRefreshTokenMissing
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh token rejected", "error", err)
		return nil, TokenPair{}, ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, TokenPair{}, ErrRefreshUserNotFound
		}
		return nil, TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to look up user")
	}

	if !user.IsEmailVerified {
		return nil, TokenPair{}, ErrRefreshEmailNotVerified
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokensRefreshed, user.ID, nil)

	return user, pair, nil
}

// Profile returns the user behind an authenticated request.
func (s *Authenticator) Profile(ctx context.Context, userID int64) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load profile")
	}
	return user, nil
}

// Users lists every account.
func (s *Authenticator) Users(ctx context.Context) ([]*User, error) {
	records, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (s *Authenticator) loginFailed(ctx context.Context, userID int64, email string, reason *errors.Error) {
	s.logger.Info("Login rejected", "email", email, "reason", reason.TextCode)
	s.emitAuthEvent(ctx, ActivityEventLoginFailure, userID, map[string]any{
		"email": email,
		"error": reason.TextCode,
	})
}

func (s *Authenticator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID int64, metadata map[string]any) {
	err := s.activity.Record(ctx, ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("activity sink failed", "event", eventType, "error", err)
	}
}
