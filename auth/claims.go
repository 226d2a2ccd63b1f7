package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload. It carries only the user id.
type Claims struct {
	jwt.RegisteredClaims
	UID int64 `json:"id"`
}

// UserID returns the id carried by the token.
func (c *Claims) UserID() int64 {
	return c.UID
}

func newClaims(userID int64) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(userID, 10),
		},
		UID: userID,
	}
}
