package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.PersistCleartext)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM", cfg.DeployerPrincipal().String())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("REGISTRY_STORAGE_DRIVER", "postgres")
	t.Setenv("REGISTRY_POSTGRES_DSN", "postgres://registry@localhost/registry")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REGISTRY_PERSIST_CLEARTEXT", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.PersistCleartext)
}

func TestValidate(t *testing.T) {
	base, err := FromEnv()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Server)
	}{
		{"bad deployer", func(c *Server) { c.Deployer = "not-a-principal" }},
		{"empty key", func(c *Server) { c.JWTSigningKey = " " }},
		{"unknown driver", func(c *Server) { c.Storage.Driver = "mongo" }},
		{"postgres without dsn", func(c *Server) { c.Storage.Driver = DriverPostgres; c.Storage.PostgresDSN = "" }},
		{"sqlite without path", func(c *Server) { c.Storage.SQLitePath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromEnv_ParseError(t *testing.T) {
	t.Setenv("REGISTRY_SHUTDOWN_TIMEOUT", "soon")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
