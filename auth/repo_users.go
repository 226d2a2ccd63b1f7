package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

var SetVerificationTokenSQL = `UPDATE "users" AS "usr"
SET
	"email_verification_token" = ?,
	"email_verification_expires" = ?,
	"verification_attempts" = "usr"."verification_attempts" + 1,
	"updated_at" = ?
WHERE
	("usr"."id" = ?)
	AND "usr"."is_email_verified" = FALSE;`

var TouchVerificationSentSQL = `UPDATE "users" AS "usr"
SET
	"last_verification_email_sent" = ?,
	"updated_at" = ?
WHERE
	("usr"."id" = ?);`

var MarkEmailVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"email_verification_token" = NULL,
	"email_verification_expires" = NULL,
	"verification_attempts" = 0,
	"last_verification_email_sent" = NULL,
	"consumed_verification_digest" = ?,
	"updated_at" = ?
WHERE
	("usr"."id" = ?)
	AND "usr"."email_verification_token" = ?
	AND "usr"."is_email_verified" = FALSE;`

// Users is the credential store.
type Users interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	GetByConsumedVerificationDigest(ctx context.Context, digest string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error
	SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id int64, token string, expires time.Time) error
	TouchVerificationSent(ctx context.Context, id int64, at time.Time) error
	TouchVerificationSentTx(ctx context.Context, tx bun.IDB, id int64, at time.Time) error
	MarkEmailVerified(ctx context.Context, id int64, token, consumedDigest string) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id int64, token, consumedDigest string) error
}

type users struct {
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock sets the clock used for created/updated timestamps.
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repoUsers := &users{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

// NormalizeEmail trims and lower cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error) {
	return a.getBy(ctx, tx, "id", id)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getBy(ctx, tx, "email", NormalizeEmail(email))
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getBy(ctx, tx, "email_verification_token", token)
}

func (a *users) GetByConsumedVerificationDigest(ctx context.Context, digest string) (*User, error) {
	return a.getBy(ctx, a.db, "consumed_verification_digest", digest)
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Order("id ASC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	now := a.now()
	record.Email = NormalizeEmail(record.Email)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := tx.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return a.SetVerificationTokenTx(ctx, a.db, id, token, expires)
}

func (a *users) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id int64, token string, expires time.Time) error {
	return a.execUpdate(ctx, tx, id, SetVerificationTokenSQL, token, expires, a.now(), id)
}

func (a *users) TouchVerificationSent(ctx context.Context, id int64, at time.Time) error {
	return a.TouchVerificationSentTx(ctx, a.db, id, at)
}

func (a *users) TouchVerificationSentTx(ctx context.Context, tx bun.IDB, id int64, at time.Time) error {
	return a.execUpdate(ctx, tx, id, TouchVerificationSentSQL, at, a.now(), id)
}

func (a *users) MarkEmailVerified(ctx context.Context, id int64, token, consumedDigest string) error {
	return a.MarkEmailVerifiedTx(ctx, a.db, id, token, consumedDigest)
}

// MarkEmailVerifiedTx flips the verified flag and clears the pending token
// in a single statement. It only matches while token is still pending.
func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id int64, token, consumedDigest string) error {
	return a.execUpdate(ctx, tx, id, MarkEmailVerifiedSQL, consumedDigest, a.now(), id, token)
}

func (a *users) execUpdate(ctx context.Context, tx bun.IDB, id int64, query string, args ...any) error {
	res, err := tx.NewRaw(query, args...).Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": strconv.FormatInt(id, 10),
			})
	}

	return nil
}
