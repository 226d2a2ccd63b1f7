package site

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Changes is a partial update. Nil fields are left as they are.
type Changes struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

func (c Changes) empty() bool {
	return c.Name == nil && c.IsActive == nil
}

// Repository is the tracked_sites store. Mutations are scoped to the
// owner and report the number of affected rows.
type Repository interface {
	Create(ctx context.Context, record *TrackedSite) (*TrackedSite, error)
	GetByUserAndURL(ctx context.Context, userID int64, url string, activeOnly bool) (*TrackedSite, error)
	ListByUser(ctx context.Context, userID int64) ([]*TrackedSite, error)
	UpdateByUser(ctx context.Context, id, userID int64, changes Changes) (int64, error)
	DeleteByUser(ctx context.Context, id, userID int64) (int64, error)
}

type sites struct {
	db  *bun.DB
	now func() time.Time
}

var _ Repository = (*sites)(nil)

func NewRepository(db *bun.DB) Repository {
	return &sites{db: db, now: time.Now}
}

func (r *sites) Create(ctx context.Context, record *TrackedSite) (*TrackedSite, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	if _, err := r.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *sites) GetByUserAndURL(ctx context.Context, userID int64, url string, activeOnly bool) (*TrackedSite, error) {
	record := &TrackedSite{}
	q := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.url = ?", url)
	if activeOnly {
		q = q.Where("?TableAlias.is_active = ?", true)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"url": url})
		}
		return nil, err
	}
	return record, nil
}

// ListByUser returns the newest sites first.
func (r *sites) ListByUser(ctx context.Context, userID int64) ([]*TrackedSite, error) {
	records := []*TrackedSite{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

// UpdateByUser applies changes to the site when it belongs to userID. With
// no changes it only counts the matching rows.
func (r *sites) UpdateByUser(ctx context.Context, id, userID int64, changes Changes) (int64, error) {
	if changes.empty() {
		count, err := r.db.NewSelect().
			Model((*TrackedSite)(nil)).
			Where("id = ? AND user_id = ?", id, userID).
			Count(ctx)
		return int64(count), err
	}

	q := r.db.NewUpdate().
		Model((*TrackedSite)(nil)).
		Where("id = ? AND user_id = ?", id, userID)
	if changes.Name != nil {
		q = q.Set("name = ?", *changes.Name)
	}
	if changes.IsActive != nil {
		q = q.Set("is_active = ?", *changes.IsActive)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sites) DeleteByUser(ctx context.Context, id, userID int64) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*TrackedSite)(nil)).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
