package apikey

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/persistence"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ErrMalformedID is returned when a key id path parameter is not a UUID.
var ErrMalformedID = errors.New("api key id must be a UUID", errors.CategoryBadInput).
	WithTextCode("api_key_id_malformed").
	WithCode(errors.CodeBadRequest)

// Config holds the signing settings.
type Config interface {
	GetAPIKeySecret() []byte
	GetAPIKeyPrefix() string
}

// Service issues, lists, revokes and validates keys for their owners.
type Service struct {
	repo     Repository
	signer   *Signer
	now      func() time.Time
	logger   logging.Logger
	activity auth.ActivitySink
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithActivitySink(sink auth.ActivitySink) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.activity = sink
		}
	}
}

func NewService(repo Repository, signer *Signer, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		signer:   signer,
		now:      time.Now,
		logger:   logging.Console("APIKEY"),
		activity: auth.ActivitySinkFunc(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create issues and stores a key for userID. An empty name is stored as
// null.
func (s *Service) Create(ctx context.Context, userID int64, name string) (*APIKey, error) {
	key, err := s.signer.Issue(userID)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive api key id")
	}

	record := &APIKey{
		ID:        id,
		Key:       key,
		UserID:    userID,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if name = strings.TrimSpace(name); name != "" {
		record.Name = &name
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, errors.Wrap(err, errors.CategoryConflict, "api key collision, retry").
				WithTextCode("api_key_collision").
				WithCode(errors.CodeBadRequest)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to store api key")
	}

	s.record(ctx, auth.ActivityEventAPIKeyIssued, userID, map[string]any{"key_id": created.ID.String()})

	return created, nil
}

// List returns every key owned by userID.
func (s *Service) List(ctx context.Context, userID int64) ([]*APIKey, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list api keys")
	}
	return records, nil
}

// Revoke hard deletes the key when it belongs to userID. A key owned by
// someone else is left untouched and the count is zero.
func (s *Service) Revoke(ctx context.Context, userID int64, id string) (int64, error) {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return 0, ErrMalformedID
	}

	count, err := s.repo.DeleteByUser(ctx, keyID, userID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to revoke api key")
	}

	if count > 0 {
		s.record(ctx, auth.ActivityEventAPIKeyRevoked, userID, map[string]any{"key_id": keyID.String()})
	}

	return count, nil
}

// ValidateAndGetUser checks the signature, then requires a stored active
// key. Each success updates lastUsed.
func (s *Service) ValidateAndGetUser(ctx context.Context, key string) (int64, error) {
	if _, err := s.signer.Check(key); err != nil {
		return 0, err
	}

	record, err := s.repo.GetByIdentifier(ctx, key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return 0, ErrInvalidKey
		}
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to look up api key")
	}

	if !record.IsActive {
		return 0, ErrInvalidKey
	}

	if err := s.repo.TouchLastUsed(ctx, record.ID, s.now()); err != nil {
		s.logger.Warn("failed to record api key use", "key_id", record.ID.String(), "error", err)
	}

	return record.UserID, nil
}

func (s *Service) record(ctx context.Context, eventType auth.ActivityEventType, userID int64, metadata map[string]any) {
	err := s.activity.Record(ctx, auth.ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("activity sink failed", "event", eventType, "error", err)
	}
}
