package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	method     jwt.SigningMethod
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     logging.Logger
}

// TokenServiceOption configures a TokenServiceImpl.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the clock used for issued-at, expiry and validation.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger logging.Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. Only HMAC signing
// methods are accepted; anything else falls back to HS256.
func NewTokenService(cfg TokenConfig, opts ...TokenServiceOption) *TokenServiceImpl {
	method, ok := jwt.GetSigningMethod(cfg.GetSigningMethod()).(*jwt.SigningMethodHMAC)
	if !ok || method == nil {
		method = jwt.SigningMethodHS256
	}

	ts := &TokenServiceImpl{
		signingKey: cfg.GetSigningKey(),
		method:     method,
		issuer:     cfg.GetIssuer(),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		now:        time.Now,
		logger:     logging.Console("AUTH"),
	}

	for _, opt := range opts {
		opt(ts)
	}

	return ts
}

// Sign creates a token for userID that expires after ttl.
func (ts *TokenServiceImpl) Sign(userID int64, ttl time.Duration) (string, error) {
	now := ts.now()

	claims := newClaims(userID)
	claims.Issuer = ts.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(ts.method, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// IssuePair signs an access and a refresh token for userID.
func (ts *TokenServiceImpl) IssuePair(userID int64) (TokenPair, error) {
	access, err := ts.Sign(userID, ts.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.Sign(userID, ts.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: ts.now().Add(ts.refreshTTL),
	}, nil
}

// Verify parses and validates a token string, returning its claims.
func (ts *TokenServiceImpl) Verify(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID <= 0 {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// UserIDFromToken validates an access token and returns its user id.
func (ts *TokenServiceImpl) UserIDFromToken(tokenString string) (int64, error) {
	claims, err := ts.Verify(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.UserID(), nil
}
