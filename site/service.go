package site

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/persistence"
)

const TextCodeAlreadyTracked = "site_already_tracked"

// ErrAlreadyTracked is returned when the user already tracks the host.
var ErrAlreadyTracked = errors.New("Сайт уже отслеживается", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyTracked).
	WithCode(errors.CodeBadRequest)

// Service manages the tracked sites of a user.
type Service struct {
	repo   Repository
	logger logging.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		logger: logging.Console("SITES"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create stores rawURL normalized to scheme and host.
func (s *Service) Create(ctx context.Context, userID int64, rawURL, name string) (*TrackedSite, error) {
	normalized := NormalizeURL(rawURL)

	if _, err := s.repo.GetByUserAndURL(ctx, userID, normalized, false); err == nil {
		return nil, ErrAlreadyTracked
	} else if !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up site")
	}

	record := &TrackedSite{
		UserID:   userID,
		URL:      normalized,
		IsActive: true,
	}
	if name = strings.TrimSpace(name); name != "" {
		record.Name = &name
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, ErrAlreadyTracked
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create site")
	}

	s.logger.Debug("site tracked", "user_id", userID, "url", normalized)

	return created, nil
}

// List returns the sites of userID, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*TrackedSite, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list sites")
	}
	return records, nil
}

// Update changes a site owned by userID. Sites of other users are not
// touched and the count is zero.
func (s *Service) Update(ctx context.Context, id, userID int64, changes Changes) (int64, error) {
	count, err := s.repo.UpdateByUser(ctx, id, userID, changes)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to update site")
	}
	return count, nil
}

// Remove deletes a site owned by userID.
func (s *Service) Remove(ctx context.Context, id, userID int64) (int64, error) {
	count, err := s.repo.DeleteByUser(ctx, id, userID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to remove site")
	}
	return count, nil
}

// FindByUserAndURL returns the active site of userID matching rawURL after
// normalization.
func (s *Service) FindByUserAndURL(ctx context.Context, userID int64, rawURL string) (*TrackedSite, error) {
	record, err := s.repo.GetByUserAndURL(ctx, userID, NormalizeURL(rawURL), true)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up site")
	}
	return record, nil
}
