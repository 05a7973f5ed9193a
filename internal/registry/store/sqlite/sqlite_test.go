package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pedersen-identity/internal/registry/store"
	"pedersen-identity/internal/registry/store/sqlite"
	"pedersen-identity/internal/registry/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{NewStore: func() store.Store {
		s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
		require.NoError(t, err)
		return s
	}})
}

func TestOpen_ReappliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	first, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), "  ")
	require.Error(t, err)
}
