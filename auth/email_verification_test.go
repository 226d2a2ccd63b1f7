package auth_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/goliatone/go-spectra/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func createUser(t *testing.T, f *fixture, email string) *auth.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), &auth.User{
		Email:        email,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	return user
}

func reload(t *testing.T, f *fixture, id int64) *auth.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func TestEmailVerifier_Generate(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "gen@example.com")
	assert.Equal(t, auth.VerificationNone, user.VerificationState())

	token, err := f.verifier.Generate(ctx, user.ID)
	require.NoError(t, err)
	assert.Regexp(t, hexToken, token)

	stored := reload(t, f, user.ID)
	require.NotNil(t, stored.EmailVerificationToken)
	assert.Equal(t, token, *stored.EmailVerificationToken)
	require.NotNil(t, stored.EmailVerificationExpires)
	assert.True(t, stored.EmailVerificationExpires.Equal(f.clock.Now().Add(time.Hour)))
	assert.Equal(t, 1, stored.VerificationAttempts)
	assert.Nil(t, stored.LastVerificationEmailSent)
	assert.Equal(t, auth.VerificationPending, stored.VerificationState())

	second, err := f.verifier.Generate(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, second)
	assert.Equal(t, 2, reload(t, f, user.ID).VerificationAttempts)
}

func TestEmailVerifier_SendVerification(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "send@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))

	mail, ok := f.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "send@example.com", mail.Email)

	stored := reload(t, f, user.ID)
	assert.Equal(t, mail.Token, *stored.EmailVerificationToken)
	require.NotNil(t, stored.LastVerificationEmailSent)
	assert.True(t, stored.LastVerificationEmailSent.Equal(f.clock.Now()))
	assert.Contains(t, f.events.Types(), auth.ActivityEventVerificationSent)
}

func TestEmailVerifier_SendVerificationMailFailure(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "down@example.com")
	f.mailer.Fail(errMailDown)

	err := f.verifier.SendVerification(ctx, user)
	require.Error(t, err)

	stored := reload(t, f, user.ID)
	assert.NotNil(t, stored.EmailVerificationToken, "token is kept so resend can recover")
	assert.Equal(t, 1, stored.VerificationAttempts)
	assert.Nil(t, stored.LastVerificationEmailSent, "send time is only recorded after dispatch")
}

func TestEmailVerifier_Verify(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "alice@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))
	mail, _ := f.mailer.Last()

	verified, err := f.verifier.Verify(ctx, mail.Token)
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)

	stored := reload(t, f, user.ID)
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerificationToken)
	assert.Nil(t, stored.EmailVerificationExpires)
	assert.Zero(t, stored.VerificationAttempts)
	assert.Nil(t, stored.LastVerificationEmailSent)
	assert.Equal(t, auth.VerificationVerified, stored.VerificationState())
	assert.Contains(t, f.events.Types(), auth.ActivityEventEmailVerified)

	t.Run("replay answers already verified", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, mail.Token)
		assert.ErrorIs(t, err, auth.ErrEmailAlreadyVerified)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, "deadbeef")
		assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, "")
		assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)
	})
}

func TestEmailVerifier_VerifyExpired(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "late@example.com")
	token, err := f.verifier.Generate(ctx, user.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)

	_, err = f.verifier.Verify(ctx, token)
	assert.ErrorIs(t, err, auth.ErrVerificationExpired)
	assert.False(t, reload(t, f, user.ID).IsEmailVerified)
}

func TestEmailVerifier_ResendCooldown(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "wait@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))

	f.clock.Advance(30 * time.Second)
	err := f.verifier.Resend(ctx, "wait@example.com")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeCooldownActive))
	seconds, ok := auth.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 90, seconds)
	assert.Contains(t, richMessage(t, err), "90")

	f.clock.Advance(89*time.Second + 500*time.Millisecond)
	err = f.verifier.Resend(ctx, "wait@example.com")
	seconds, ok = auth.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 1, seconds, "remaining time is rounded up")

	assert.Equal(t, 1, f.mailer.Count())
	assert.Equal(t, 1, reload(t, f, user.ID).VerificationAttempts, "rejections do not count as attempts")
}

func TestEmailVerifier_ResendReusesPendingToken(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "tabs@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))
	first, _ := f.mailer.Last()

	f.clock.Advance(3 * time.Minute)
	require.NoError(t, f.verifier.Resend(ctx, "tabs@example.com"))

	second, _ := f.mailer.Last()
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, 2, f.mailer.Count())

	stored := reload(t, f, user.ID)
	assert.Equal(t, 1, stored.VerificationAttempts)
	assert.True(t, stored.LastVerificationEmailSent.Equal(f.clock.Now()))
}

func TestEmailVerifier_ResendAfterExpiryMintsNewToken(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "fresh@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))
	first, _ := f.mailer.Last()

	f.clock.Advance(61 * time.Minute)
	require.NoError(t, f.verifier.Resend(ctx, "fresh@example.com"))

	second, _ := f.mailer.Last()
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, 2, reload(t, f, user.ID).VerificationAttempts)

	_, err := f.verifier.Verify(ctx, first.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidVerificationToken)

	_, err = f.verifier.Verify(ctx, second.Token)
	assert.NoError(t, err)
}

func TestEmailVerifier_ResendAttemptsExceeded(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	user := createUser(t, f, "many@example.com")
	require.NoError(t, f.verifier.SendVerification(ctx, user))

	for i := 0; i < 2; i++ {
		f.clock.Advance(61 * time.Minute)
		require.NoError(t, f.verifier.Resend(ctx, "many@example.com"))
	}
	assert.Equal(t, 3, reload(t, f, user.ID).VerificationAttempts)

	f.clock.Advance(61 * time.Minute)
	err := f.verifier.Resend(ctx, "many@example.com")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAttemptsExceeded))
	assert.Contains(t, richMessage(t, err), "(3)")
	assert.Equal(t, 3, f.mailer.Count())
}

func TestEmailVerifier_ResendRejections(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		err := f.verifier.Resend(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("already verified", func(t *testing.T) {
		user := createUser(t, f, "done@example.com")
		require.NoError(t, f.verifier.SendVerification(ctx, user))
		mail, _ := f.mailer.Last()
		_, err := f.verifier.Verify(ctx, mail.Token)
		require.NoError(t, err)

		err = f.verifier.Resend(ctx, "done@example.com")
		assert.ErrorIs(t, err, auth.ErrEmailAlreadyVerified)
	})
}

func TestEmailVerifier_TokenCollisionRetry(t *testing.T) {
	taken := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	fresh := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	t.Run("retries until unique", func(t *testing.T) {
		queue := []string{taken, taken, fresh}
		f, cleanup := newFixture(t, auth.WithTokenSource(func() (string, error) {
			if len(queue) == 0 {
				return auth.NewVerificationToken()
			}
			next := queue[0]
			queue = queue[1:]
			return next, nil
		}))
		defer cleanup()
		ctx := context.Background()

		first := createUser(t, f, "first@example.com")
		token, err := f.verifier.Generate(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, taken, token)

		second := createUser(t, f, "second@example.com")
		token, err = f.verifier.Generate(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, fresh, token)
	})

	t.Run("gives up after ten collisions", func(t *testing.T) {
		calls := 0
		f, cleanup := newFixture(t, auth.WithTokenSource(func() (string, error) {
			calls++
			return taken, nil
		}))
		defer cleanup()
		ctx := context.Background()

		first := createUser(t, f, "first@example.com")
		_, err := f.verifier.Generate(ctx, first.ID)
		require.NoError(t, err)

		calls = 0
		second := createUser(t, f, "second@example.com")
		_, err = f.verifier.Generate(ctx, second.ID)
		assert.ErrorIs(t, err, auth.ErrTokenMintExhausted)
		assert.Equal(t, 10, calls)
		assert.Nil(t, reload(t, f, second.ID).EmailVerificationToken)
	})
}
