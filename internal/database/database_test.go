package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.db"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"matches", "match_participants"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")

	db, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestDSNCarriesConnectionSettings(t *testing.T) {
	got := dsn("/tmp/x.db")
	assert.True(t, strings.HasPrefix(got, "file:/tmp/x.db?"))
	assert.Contains(t, got, "_foreign_keys=on")
	assert.Contains(t, got, "_journal_mode=WAL")
}
