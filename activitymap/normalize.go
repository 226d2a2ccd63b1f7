// Package activitymap turns auth activity events into a flat record that
// log pipelines and audit stores can index.
package activitymap

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/logging"
)

const (
	// MetadataKeyKeyID is the metadata entry carrying an api key id.
	MetadataKeyKeyID = "key_id"

	ObjectTypeUser   = "user"
	ObjectTypeAPIKey = "api_key"
)

const (
	defaultChannel = "auth"
	defaultActorID = "system"
)

// Normalized is a transport agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel string
	now     func() time.Time
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if channel = strings.TrimSpace(channel); channel != "" {
			opts.channel = channel
		}
	}
}

// WithClock sets the time used when an event carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// Normalize converts an auth.ActivityEvent into the flat shape. API key
// events point at the key, every other event points at the user.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{channel: defaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := defaultActorID
	if event.UserID > 0 {
		actorID = strconv.FormatInt(event.UserID, 10)
	}

	objectType, objectID := ObjectTypeUser, ""
	if event.UserID > 0 {
		objectID = actorID
	}
	if keyID, ok := event.Metadata[MetadataKeyKeyID].(string); ok && keyID != "" {
		objectType, objectID = ObjectTypeAPIKey, keyID
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   cloneMap(event.Metadata),
		OccurredAt: occurredAt.UTC(),
	}
}

// LogSink records every event as a normalized log entry.
func LogSink(logger logging.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = logging.Console("ACTIVITY")
	}
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		record := Normalize(event, opts...)
		args := []any{
			"actor_id", record.ActorID,
			"verb", record.Verb,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"channel", record.Channel,
			"occurred_at", record.OccurredAt.Format(time.RFC3339),
		}
		for k, v := range record.Metadata {
			args = append(args, "meta."+k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
