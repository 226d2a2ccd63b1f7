package persistence

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for the given driver.
func GetMigrationsFS(driver string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations/"+driver)
}

// Migrate applies every pending migration for the driver.
func Migrate(ctx context.Context, db *bun.DB, driver string, logger logging.Logger) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if logger == nil {
		logger = logging.Console("MIGRATE")
	}

	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	migrations, err := GetMigrationsFS(driver)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(dialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations").
			WithMetadata(map[string]any{"driver": driver})
	}

	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "pgx", nil
	}
	return "", goerrors.New("unsupported migration driver", goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"driver": driver})
}

type gooseLogger struct {
	logger logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Debug(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(fmt.Sprintf(format, v...))
}
