package auth_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-spectra/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastArgon2 = auth.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestArgon2Hasher_Hash(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Unicode password",
			password: "пароль-密码",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	hasher := auth.NewArgon2Hasher(fastArgon2)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

			ok, err := hasher.Verify(hash, tt.password)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestArgon2Hasher_Verify(t *testing.T) {
	hasher := auth.NewArgon2Hasher(fastArgon2)
	hash, err := hasher.Hash("testPassword123!")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		ok, err := hasher.Verify(hash, "wrongPassword")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("parameters are read from the hash", func(t *testing.T) {
		other := auth.NewArgon2Hasher(auth.Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 2})
		ok, err := other.Verify(hash, "testPassword123!")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("salts differ between hashes", func(t *testing.T) {
		again, err := hasher.Hash("testPassword123!")
		require.NoError(t, err)
		assert.NotEqual(t, hash, again)
	})

	t.Run("malformed hashes", func(t *testing.T) {
		for _, bad := range []string{
			"",
			"plain",
			"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
			"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
		} {
			_, err := hasher.Verify(bad, "testPassword123!")
			assert.ErrorIs(t, err, auth.ErrMalformedHash, bad)
		}
	})
}
