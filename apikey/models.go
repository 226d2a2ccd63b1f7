package apikey

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// APIKey is a signed key owned by a user. ID is derived from the key
// material so the same key always maps to the same id.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Key       string     `bun:"key,notnull,unique" json:"key"`
	UserID    int64      `bun:"user_id,notnull" json:"-"`
	Name      *string    `bun:"name" json:"name"`
	IsActive  bool       `bun:"is_active,notnull" json:"isActive"`
	LastUsed  *time.Time `bun:"last_used" json:"lastUsed"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"createdAt"`
}
