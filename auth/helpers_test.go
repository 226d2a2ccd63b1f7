package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/persistence"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	db, err := persistence.OpenMemory(context.Background())
	require.NoError(t, err)
	return db, func() {
		db.Close()
	}
}

type sentMail struct {
	Email string
	Token string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{Email: email, Token: token})
	return nil
}

func (m *captureMailer) Last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func (m *captureMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

var errMailDown = errors.New("smtp unavailable")

type verificationConfig struct {
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
}

func (c verificationConfig) GetVerificationTokenTTL() time.Duration       { return c.ttl }
func (c verificationConfig) GetVerificationResendCooldown() time.Duration { return c.cooldown }
func (c verificationConfig) GetVerificationMaxAttempts() int              { return c.maxAttempts }

type fixture struct {
	db       *bun.DB
	users    auth.Users
	mailer   *captureMailer
	clock    *testClock
	verifier *auth.EmailVerifier
	auther   *auth.Authenticator
	tokens   *auth.TokenServiceImpl
	events   *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newFixture(t *testing.T, opts ...auth.VerifierOption) (*fixture, func()) {
	t.Helper()
	db, cleanup := setupDB(t)

	clock := newTestClock()
	mailer := &captureMailer{}
	events := &eventRecorder{}
	users := auth.NewUsersRepository(db, auth.WithUsersClock(clock.Now))

	base := []auth.VerifierOption{
		auth.WithVerificationConfig(verificationConfig{ttl: time.Hour, cooldown: 2 * time.Minute, maxAttempts: 3}),
		auth.WithVerifierClock(clock.Now),
		auth.WithVerifierActivitySink(events),
	}
	verifier := auth.NewEmailVerifier(users, db, mailer, append(base, opts...)...)

	tokens := auth.NewTokenService(defaultTokenConfig(), auth.WithTokenClock(clock.Now))
	auther := auth.NewAuthenticator(users, auth.NewArgon2Hasher(fastArgon2), tokens, verifier).
		WithClock(clock.Now).
		WithActivitySink(events)

	return &fixture{
		db:       db,
		users:    users,
		mailer:   mailer,
		clock:    clock,
		verifier: verifier,
		auther:   auther,
		tokens:   tokens,
		events:   events,
	}, cleanup
}

func richMessage(t *testing.T, err error) string {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected a rich error, got %v", err)
	return richErr.Message
}
