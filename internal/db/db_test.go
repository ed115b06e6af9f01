package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	database, err := Init("sqlite", memoryDSN())
	require.NoError(t, err)
	defer func() { _ = Close(database) }()

	m, err := NewMigrator(database.DB, "sqlite")
	require.NoError(t, err)

	states, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, states)
	for _, s := range states {
		assert.False(t, s.Applied, s.File)
	}

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(states), n)

	var tables int
	err = database.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'user_votes')")
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	version, err := m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, states[len(states)-1].Version, version)

	states, err = m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, states[len(states)-1].Applied)
}

func TestMigrate(t *testing.T) {
	database, err := Init("sqlite", memoryDSN())
	require.NoError(t, err)
	defer func() { _ = Close(database) }()

	require.NoError(t, Migrate(context.Background(), database.DB, "sqlite"))
	require.NoError(t, Migrate(context.Background(), database.DB, "sqlite"))
}

func TestNewMigratorUnknownDriver(t *testing.T) {
	database, err := Init("sqlite", memoryDSN())
	require.NoError(t, err)
	defer func() { _ = Close(database) }()

	_, err = NewMigrator(database.DB, "mysql")
	assert.ErrorContains(t, err, `no migration dialect for driver "mysql"`)
}

func TestInitCreatesDataDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dirigo.db")

	database, err := Init("sqlite", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NoError(t, Close(database))
	assert.NoError(t, Close(nil))
}
