// Package persistence opens the relational store and keeps its schema
// current.
package persistence

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config exposes the settings needed to open the store.
type Config interface {
	GetDatabaseDriver() string
	GetDatabaseDSN() string
	GetDatabaseDebug() bool
}

// Open connects to the configured store and returns a bun handle.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (*bun.DB, error) {
	if logger == nil {
		logger = logging.Console("DB")
	}

	var db *bun.DB
	switch cfg.GetDatabaseDriver() {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDatabaseDSN())
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// sqlite serializes writers; a single connection also keeps
		// in-memory databases alive for the lifetime of the handle
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", cfg.GetDatabaseDSN())
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, goerrors.New("unsupported database driver", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": cfg.GetDatabaseDriver()})
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach database")
	}

	if cfg.GetDatabaseDebug() {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	logger.Info("database connected", "driver", cfg.GetDatabaseDriver(), "dsn", redactDSN(cfg.GetDatabaseDSN()))

	return db, nil
}

// OpenMemory opens a migrated in-memory sqlite store. Used by local runs
// and by tests across packages.
func OpenMemory(ctx context.Context) (*bun.DB, error) {
	cfg := memoryConfig{}
	db, err := Open(ctx, cfg, logging.Nop())
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, cfg.GetDatabaseDriver(), logging.Nop()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type memoryConfig struct{}

func (memoryConfig) GetDatabaseDriver() string { return DriverSQLite }
func (memoryConfig) GetDatabaseDSN() string    { return ":memory:" }
func (memoryConfig) GetDatabaseDebug() bool    { return false }

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at == -1 {
		return dsn
	}
	scheme := strings.Index(dsn, "://")
	if scheme == -1 || scheme > at {
		return "******" + dsn[at:]
	}
	return dsn[:scheme+3] + "******" + dsn[at:]
}
