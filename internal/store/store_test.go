package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/traffic-control/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "traffic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
