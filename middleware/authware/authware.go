// Package authware authenticates fiber requests with either a bearer
// access token or an API key header.
package authware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

const (
	DefaultContextKey   = "user"
	DefaultAuthScheme   = "Bearer"
	DefaultAPIKeyHeader = "X-API-Key"

	MethodBearer = "bearer"
	MethodAPIKey = "api_key"
)

// ErrMissingCredentials is returned when neither a bearer token nor an API
// key is present.
var ErrMissingCredentials = errors.New("missing or malformed credentials", errors.CategoryAuth).
	WithTextCode("auth_missing_credentials").
	WithCode(errors.CodeUnauthorized)

// ErrUnauthorized is the uniform answer for any rejected credential.
var ErrUnauthorized = errors.New("Unauthorized", errors.CategoryAuth).
	WithTextCode("auth_unauthorized").
	WithCode(errors.CodeUnauthorized)

// TokenValidator resolves an access token to a user id.
type TokenValidator interface {
	UserIDFromToken(token string) (int64, error)
}

// APIKeyValidator resolves an API key to its owner.
type APIKeyValidator interface {
	ValidateAndGetUser(ctx context.Context, key string) (int64, error)
}

// Actor is stored in the request locals after authentication.
type Actor struct {
	UserID int64
	Method string
}

// Logger is the subset of the logging contract used here.
type Logger interface {
	Debug(format string, args ...any)
}

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   func(*fiber.Ctx, error) error
	ContextKey     string
	AuthScheme     string
	APIKeyHeader   string
	// TokenValidator is required
	TokenValidator TokenValidator
	// APIKeyValidator enables the API key header when set
	APIKeyValidator APIKeyValidator
	Logger          Logger
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		actor, err := cfg.authenticate(c)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Debug("request authentication failed", "path", c.Path(), "error", err)
			}
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, actor)

		return cfg.SuccessHandler(c)
	}
}

func (cfg Config) authenticate(c *fiber.Ctx) (*Actor, error) {
	if cfg.APIKeyValidator != nil {
		if key := strings.TrimSpace(c.Get(cfg.APIKeyHeader)); key != "" {
			uid, err := cfg.APIKeyValidator.ValidateAndGetUser(c.UserContext(), key)
			if err != nil || uid <= 0 {
				return nil, ErrUnauthorized
			}
			return &Actor{UserID: uid, Method: MethodAPIKey}, nil
		}
	}

	raw, err := ExtractBearerToken(c.Get(fiber.HeaderAuthorization), cfg.AuthScheme)
	if err != nil {
		return nil, err
	}

	uid, err := cfg.TokenValidator.UserIDFromToken(raw)
	if err != nil || uid <= 0 {
		return nil, ErrUnauthorized
	}

	return &Actor{UserID: uid, Method: MethodBearer}, nil
}

// ExtractBearerToken returns the token portion of an Authorization header.
func ExtractBearerToken(header, scheme string) (string, error) {
	l := len(scheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) && header[l] == ' ' {
		if token := strings.TrimSpace(header[l+1:]); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingCredentials
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: authware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}

	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}

	return cfg
}

// ActorFrom returns the authenticated actor stored under key.
func ActorFrom(c *fiber.Ctx, key ...string) (*Actor, bool) {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	actor, ok := c.Locals(k).(*Actor)
	return actor, ok && actor != nil
}

// UserID returns the authenticated user id.
func UserID(c *fiber.Ctx, key ...string) (int64, bool) {
	actor, ok := ActorFrom(c, key...)
	if !ok {
		return 0, false
	}
	return actor.UserID, true
}
