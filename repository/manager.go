// Package repository groups the stores behind a single manager so the
// services share one database handle and transaction runner.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-spectra/apikey"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/site"
	"github.com/uptrace/bun"
)

type Manager struct {
	db      *bun.DB
	users   auth.Users
	apiKeys apikey.Repository
	sites   site.Repository
}

func NewManager(db *bun.DB, opts ...auth.UsersOption) *Manager {
	return &Manager{
		db:      db,
		users:   auth.NewUsersRepository(db, opts...),
		apiKeys: apikey.NewRepository(db),
		sites:   site.NewRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.apiKeys == nil {
		return errors.New("repository apiKeys should be initialized")
	}

	if m.sites == nil {
		return errors.New("repository sites should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

func (m *Manager) Users() auth.Users {
	return m.users
}

func (m *Manager) APIKeys() apikey.Repository {
	return m.apiKeys
}

func (m *Manager) Sites() site.Repository {
	return m.sites
}
