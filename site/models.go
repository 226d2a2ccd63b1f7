package site

import (
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// TrackedSite is a host a user keeps an eye on. URL holds only the scheme
// and host, so (UserID, URL) is unique per host.
type TrackedSite struct {
	bun.BaseModel `bun:"table:tracked_sites,alias:ts"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"userId"`
	URL       string    `bun:"url,notnull" json:"url"`
	Name      *string   `bun:"name" json:"name"`
	IsActive  bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// NormalizeURL reduces raw to scheme://host, dropping port, path, query
// and fragment. Input that does not parse as an absolute URL is returned
// trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return raw
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Hostname())
}
