package apikey

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository is the api_keys store.
type Repository interface {
	Create(ctx context.Context, record *APIKey, criteria ...repository.InsertCriteria) (*APIKey, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*APIKey, error)
	ListByUser(ctx context.Context, userID int64) ([]*APIKey, error)
	DeleteByUser(ctx context.Context, id uuid.UUID, userID int64) (int64, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type apiKeys struct {
	repository.Repository[*APIKey]
	db *bun.DB
}

var _ Repository = (*apiKeys)(nil)

// NewRepository returns the bun backed store. Records are looked up by
// their key through GetByIdentifier.
func NewRepository(db *bun.DB) Repository {
	handlers := repository.ModelHandlers[*APIKey]{
		NewRecord: func() *APIKey {
			return &APIKey{}
		},
		GetID: func(record *APIKey) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *APIKey, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key"
		},
	}
	return &apiKeys{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *apiKeys) ListByUser(ctx context.Context, userID int64) ([]*APIKey, error) {
	records := []*APIKey{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

// DeleteByUser removes the key only when it belongs to userID and reports
// the number of rows removed.
func (r *apiKeys) DeleteByUser(ctx context.Context, id uuid.UUID, userID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*APIKey)(nil)).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *apiKeys) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*APIKey)(nil)).
		Set("last_used = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
