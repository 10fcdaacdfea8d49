// Package testutil opens migrated SQLite databases for tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/landrecords/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/landrecords/migrations"
	"github.com/garyjia/landrecords/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewDB returns a transaction manager over a fresh, fully migrated database
// file under t.TempDir(). The database is closed when the test ends.
func NewDB(t *testing.T) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	return sqlite.NewDB(db.DB, logger)
}
