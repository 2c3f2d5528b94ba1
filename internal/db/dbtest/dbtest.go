// Package dbtest opens throwaway SQLite databases with the full schema applied.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// NewTestDB returns an isolated in-memory database migrated to the latest schema.
// The database is closed when the test finishes.
func NewTestDB(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:crms_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := bunx.NewDB(dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}
