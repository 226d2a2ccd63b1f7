package persistence_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/goliatone/go-spectra/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory_RunsMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.OpenMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "api_keys", "tracked_sites"} {
		var count int
		err := db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.OpenMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	insert := "INSERT INTO users (email, password) VALUES (?, ?)"
	_, err = db.ExecContext(ctx, insert, "a@example.com", "x")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "a@example.com", "x")
	require.Error(t, err)
	assert.True(t, persistence.IsUniqueViolation(err))

	assert.False(t, persistence.IsUniqueViolation(nil))
	assert.False(t, persistence.IsUniqueViolation(errors.New("boom")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, persistence.IsNoRows(fmt.Errorf("wrapped: %w", sql.ErrNoRows)))
	assert.False(t, persistence.IsNoRows(errors.New("other")))
}

func TestGetMigrationsFS(t *testing.T) {
	for _, driver := range []string{persistence.DriverSQLite, persistence.DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			fsys, err := persistence.GetMigrationsFS(driver)
			require.NoError(t, err)

			matches, err := fs.Glob(fsys, "*.sql")
			require.NoError(t, err)
			assert.NotEmpty(t, matches)
		})
	}
}

func TestMigrate_UnknownDriver(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.OpenMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	err = persistence.Migrate(ctx, db, "mysql", nil)
	assert.Error(t, err)
}
