//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pedersen-identity/internal/registry/store"
	"pedersen-identity/internal/registry/store/postgres"
	"pedersen-identity/internal/registry/store/storetest"
	"pedersen-identity/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	suite.Run(t, &storetest.Suite{NewStore: func() store.Store {
		s, err := postgres.New(ctx, pg.DB)
		require.NoError(t, err)
		require.NoError(t, pg.TruncateTables(ctx, "registry_events", "registry_identities", "registry_roles"))
		return nopCloser{s}
	}})
}

// nopCloser keeps the shared container pool open between tests.
type nopCloser struct{ store.Store }

func (nopCloser) Close() error { return nil }
