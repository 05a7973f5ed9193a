package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	id "pedersen-identity/pkg/domain"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Server captures process configuration, loaded from the environment.
type Server struct {
	Addr            string        `env:"REGISTRY_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"REGISTRY_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Deployer is seeded as the first admin at height 0.
	Deployer string `env:"REGISTRY_DEPLOYER" envDefault:"ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"`

	// PersistCleartext stores display names next to their commitments.
	PersistCleartext bool `env:"REGISTRY_PERSIST_CLEARTEXT" envDefault:"false"`

	JWTSigningKey string `env:"REGISTRY_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	LogLevel  string `env:"REGISTRY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"REGISTRY_LOG_FORMAT" envDefault:"json"`

	MetricsEnabled bool `env:"REGISTRY_METRICS_ENABLED" envDefault:"true"`

	Storage Storage
	Redis   Redis
	Kafka   Kafka
}

// Storage selects and configures the ledger store.
type Storage struct {
	Driver      string `env:"REGISTRY_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"REGISTRY_SQLITE_PATH" envDefault:"data/registry.db"`
	PostgresDSN string `env:"REGISTRY_POSTGRES_DSN"`
}

// Redis configures the optional Redis stream sink. Empty URL disables it.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	Stream       string        `env:"REDIS_STREAM" envDefault:"identity-registry.events"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka configures the optional Kafka sink. No brokers disables it.
type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic      string   `env:"KAFKA_TOPIC" envDefault:"identity-registry.events"`
	Partitions int32    `env:"KAFKA_PARTITIONS" envDefault:"1"`
	Replicas   int16    `env:"KAFKA_REPLICAS" envDefault:"1"`
}

// FromEnv loads and validates configuration.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	if _, err := id.ParsePrincipal(c.Deployer); err != nil {
		return fmt.Errorf("invalid deployer principal: %w", err)
	}
	if strings.TrimSpace(c.JWTSigningKey) == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return fmt.Errorf("sqlite path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// DeployerPrincipal returns the validated deployer.
func (c Server) DeployerPrincipal() id.Principal {
	return id.Principal(c.Deployer)
}
