package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const keyIDBytes = 8

// ErrInvalidKey is the uniform answer for a key that fails any check.
var ErrInvalidKey = errors.New("invalid api key", errors.CategoryAuth).
	WithTextCode("api_key_invalid").
	WithCode(errors.CodeUnauthorized)

// Payload is the signed middle segment of a key.
type Payload struct {
	UserID    int64  `json:"userId"`
	KeyID     string `json:"keyId"`
	CreatedAt int64  `json:"createdAt"`
}

// Signer mints and checks self describing keys of the form
// prefix.base64url(payload).base64url(hmac-sha256(payload)).
type Signer struct {
	secret    []byte
	prefix    string
	now       func() time.Time
	mintKeyID func() (string, error)
}

type SignerOption func(*Signer)

func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func WithKeyIDSource(mint func() (string, error)) SignerOption {
	return func(s *Signer) {
		if mint != nil {
			s.mintKeyID = mint
		}
	}
}

func NewSigner(secret []byte, prefix string, opts ...SignerOption) *Signer {
	if prefix == "" {
		prefix = "spectra"
	}
	s := &Signer{
		secret:    secret,
		prefix:    prefix,
		now:       time.Now,
		mintKeyID: NewKeyID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewKeyID returns 64 random bits in base 36.
func NewKeyID() (string, error) {
	b := make([]byte, keyIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(b), 36), nil
}

// Issue returns a new signed key for userID.
func (s *Signer) Issue(userID int64) (string, error) {
	keyID, err := s.mintKeyID()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to mint api key id")
	}

	raw, err := json.Marshal(Payload{
		UserID:    userID,
		KeyID:     keyID,
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to encode api key payload")
	}

	payload := base64.RawURLEncoding.EncodeToString(raw)

	return s.prefix + "." + payload + "." + s.sign(payload), nil
}

// Check verifies the prefix, shape and signature of key and returns its
// payload. It does not consult the store.
func (s *Signer) Check(key string) (*Payload, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != s.prefix {
		return nil, ErrInvalidKey
	}

	payload, signature := parts[1], parts[2]
	if !hmac.Equal([]byte(signature), []byte(s.sign(payload))) {
		return nil, ErrInvalidKey
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidKey
	}

	out := &Payload{}
	if err := json.Unmarshal(raw, out); err != nil || out.UserID <= 0 {
		return nil, ErrInvalidKey
	}

	return out, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
