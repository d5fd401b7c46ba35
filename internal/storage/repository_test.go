package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("access_token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("access_token", "t1"))
	require.NoError(t, s.Set("access_token", "t2"))
	v, found, err := s.Get("access_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "t2", v)

	require.NoError(t, s.Delete("access_token"))
	require.NoError(t, s.Delete("access_token"))
	_, found, err = s.Get("access_token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("persist_login", "1"))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	v, found, err := s.Get("persist_login")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", v)
}

func TestMigrateStateReportsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	version, err := MigrateState(path, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Already current.
	version, err = MigrateState(path, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestOpenReplaysInterruptedSchemaStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("access_token", "t1"))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	v, found, err := s.Get("access_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "t1", v)

	var dirty bool
	require.NoError(t, s.db.QueryRow(`SELECT dirty FROM schema_migrations`).Scan(&dirty))
	assert.False(t, dirty)
}
