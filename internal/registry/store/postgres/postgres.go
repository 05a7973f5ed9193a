// Package postgres opens the PostgreSQL registry backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pedersen-identity/internal/platform/migrate"
	"pedersen-identity/internal/registry/store/sqlstore"
)

const uniqueViolation = "23505"

// Dialect is the PostgreSQL flavour of the shared SQL store. Serializable
// isolation keeps concurrent event appends from reusing a sequence number.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Placeholder:       migrate.Dollar,
	IsUniqueViolation: IsUniqueViolation,
	TxOptions:         &sql.TxOptions{Isolation: sql.LevelSerializable},
}

// New wraps an open connection pool and applies the registry migrations.
func New(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres db is required")
	}
	s := sqlstore.New(db, Dialect)
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// IsUniqueViolation reports SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
