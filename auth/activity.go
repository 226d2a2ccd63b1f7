package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-spectra/logging"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered       ActivityEventType = "auth.register"
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventTokensRefreshed  ActivityEventType = "auth.tokens.refreshed"
	ActivityEventVerificationSent ActivityEventType = "auth.email.verification_sent"
	ActivityEventEmailVerified    ActivityEventType = "auth.email.verified"
	ActivityEventAPIKeyIssued     ActivityEventType = "apikey.issued"
	ActivityEventAPIKeyRevoked    ActivityEventType = "apikey.revoked"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     int64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggerActivitySink writes every event to a logger at info level.
func LoggerActivitySink(logger logging.Logger) ActivitySink {
	if logger == nil {
		logger = logging.Console("ACTIVITY")
	}
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		args := []any{
			"event", string(event.EventType),
			"user_id", event.UserID,
			"occurred_at", event.OccurredAt.Format(time.RFC3339),
		}
		for k, v := range event.Metadata {
			args = append(args, k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}
