package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-spectra/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerAndVerify(t *testing.T, f *fixture, email, password string) *auth.User {
	t.Helper()
	ctx := context.Background()

	user, err := f.auther.Register(ctx, email, password)
	require.NoError(t, err)

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	_, err = f.verifier.Verify(ctx, mail.Token)
	require.NoError(t, err)

	return user
}

func TestAuthenticator_RegisterVerifyLogin(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user, err := f.auther.Register(ctx, "Alice@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, user.Name)
	assert.Equal(t, "alice@example.com", *user.Name)
	assert.NotEqual(t, "password123", user.PasswordHash)

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", mail.Email)

	_, _, err = f.auther.Login(ctx, "alice@example.com", "password123")
	assert.ErrorIs(t, err, auth.ErrEmailNotVerified)

	_, err = f.verifier.Verify(ctx, mail.Token)
	require.NoError(t, err)

	loggedIn, pair, err := f.auther.Login(ctx, "ALICE@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.Equal(f.clock.Now().Add(7*24*time.Hour)))

	uid, err := f.tokens.UserIDFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventRegistered,
		auth.ActivityEventVerificationSent,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventEmailVerified,
		auth.ActivityEventLoginSuccess,
	}, f.events.Types())
}

func TestAuthenticator_LoginRejections(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	registerAndVerify(t, f, "bob@example.com", "password123")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "bob@example.com", "password124"},
		{"unknown email", "nobody@example.com", "password123"},
		{"empty password", "bob@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, pair, err := f.auther.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Nil(t, user)
			assert.Empty(t, pair.AccessToken)
		})
	}
}

func TestAuthenticator_RegisterDuplicate(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	_, err := f.auther.Register(ctx, "carol@example.com", "password123")
	require.NoError(t, err)

	_, err = f.auther.Register(ctx, " CAROL@example.com", "another-pass")
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	assert.Equal(t, 1, f.mailer.Count())
}

func TestAuthenticator_RegisterMailFailureKeepsAccount(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	f.mailer.Fail(errMailDown)

	user, err := f.auther.Register(ctx, "dave@example.com", "password123")
	require.Error(t, err)
	require.NotNil(t, user)

	stored, err := f.users.GetByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Nil(t, stored.LastVerificationEmailSent)

	f.mailer.Fail(nil)
	require.NoError(t, f.verifier.Resend(ctx, "dave@example.com"))
	assert.Equal(t, 1, f.mailer.Count())
}

func TestAuthenticator_Refresh(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := registerAndVerify(t, f, "erin@example.com", "password123")
	_, pair, err := f.auther.Login(ctx, "erin@example.com", "password123")
	require.NoError(t, err)

	t.Run("valid refresh token", func(t *testing.T) {
		f.clock.Advance(time.Minute)
		refreshed, next, err := f.auther.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, refreshed.ID)
		assert.NotEmpty(t, next.AccessToken)
		assert.True(t, next.RefreshExpiresAt.After(pair.RefreshExpiresAt))
	})

	t.Run("missing token", func(t *testing.T) {
		_, _, err := f.auther.Refresh(ctx, "")
		assert.ErrorIs(t, err, auth.ErrRefreshTokenMissing)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := f.auther.Refresh(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		stale, err := f.tokens.Sign(user.ID, time.Minute)
		require.NoError(t, err)
		f.clock.Advance(2 * time.Minute)
		_, _, err = f.auther.Refresh(ctx, stale)
		assert.ErrorIs(t, err, auth.ErrRefreshTokenInvalid)
	})

	t.Run("owner no longer exists", func(t *testing.T) {
		ghost, err := f.tokens.Sign(user.ID+1000, time.Hour)
		require.NoError(t, err)
		_, _, err = f.auther.Refresh(ctx, ghost)
		assert.ErrorIs(t, err, auth.ErrRefreshUserNotFound)
	})

	t.Run("owner not verified", func(t *testing.T) {
		pending, err := f.auther.Register(ctx, "frank@example.com", "password123")
		require.NoError(t, err)
		token, err := f.tokens.Sign(pending.ID, time.Hour)
		require.NoError(t, err)
		_, _, err = f.auther.Refresh(ctx, token)
		assert.ErrorIs(t, err, auth.ErrRefreshEmailNotVerified)
	})
}

func TestAuthenticator_ProfileAndUsers(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	first := registerAndVerify(t, f, "gina@example.com", "password123")
	_, err := f.auther.Register(ctx, "hank@example.com", "password123")
	require.NoError(t, err)

	profile, err := f.auther.Profile(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.UserProfile{
		ID:              first.ID,
		Email:           "gina@example.com",
		Name:            profile.Name,
		IsEmailVerified: true,
	}, profile.Profile())

	_, err = f.auther.Profile(ctx, first.ID+1000)
	assert.ErrorIs(t, err, auth.ErrRefreshUserNotFound)

	records, err := f.auther.Users(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gina@example.com", records[0].Summary().Email)
	assert.Equal(t, "hank@example.com", records[1].Summary().Email)
}
