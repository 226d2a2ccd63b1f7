package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RefreshCookie carries the refresh token in an HTTP only cookie.
type RefreshCookie struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite string
	TTL      time.Duration
	now      func() time.Time
}

// NewRefreshCookie builds the cookie transport from cfg. The cookie lives
// as long as the refresh token.
func NewRefreshCookie(cfg CookieConfig) *RefreshCookie {
	name := cfg.GetCookieName()
	if name == "" {
		name = "refreshToken"
	}
	return &RefreshCookie{
		Name:     name,
		Domain:   cfg.GetCookieDomain(),
		Path:     "/",
		Secure:   cfg.GetCookieSecure(),
		SameSite: cfg.GetCookieSameSite(),
		TTL:      cfg.GetRefreshTokenTTL(),
		now:      time.Now,
	}
}

// Set writes the refresh token cookie.
func (rc *RefreshCookie) Set(c *fiber.Ctx, token string, expires time.Time) {
	if expires.IsZero() {
		expires = rc.now().Add(rc.TTL)
	}
	c.Cookie(&fiber.Cookie{
		Name:     rc.Name,
		Value:    token,
		Domain:   rc.Domain,
		Path:     rc.Path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   rc.Secure,
		SameSite: rc.SameSite,
	})
}

// Clear expires the refresh token cookie.
func (rc *RefreshCookie) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     rc.Name,
		Value:    "",
		Domain:   rc.Domain,
		Path:     rc.Path,
		Expires:  rc.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   rc.Secure,
		SameSite: rc.SameSite,
	})
}

// Read returns the refresh token sent by the client, if any.
func (rc *RefreshCookie) Read(c *fiber.Ctx) string {
	return c.Cookies(rc.Name)
}
