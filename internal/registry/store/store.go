// Package store defines the persistence boundary of the registry: the identity
// table, the role table and the append-only event log. Every mutating call runs
// inside RunInTx so the three tables commit or roll back together.
package store

import (
	"context"

	"pedersen-identity/internal/registry/models"
	id "pedersen-identity/pkg/domain"
	"pedersen-identity/pkg/platform/sentinel"
)

var (
	// ErrNotFound is returned when no row exists for the principal.
	ErrNotFound = sentinel.ErrNotFound
	// ErrConflict is returned when inserting a principal that already has a row.
	ErrConflict = sentinel.ErrConflict
)

// DefaultPageSize bounds ListEvents when callers pass a non-positive limit.
const DefaultPageSize = 200

// Reader exposes the read side. Returned values are copies; mutating them
// never changes stored state.
type Reader interface {
	FindIdentity(ctx context.Context, owner id.Principal) (*models.Identity, error)
	FindRole(ctx context.Context, principal id.Principal) (*models.RoleRecord, error)
	// ListIdentities and ListRoles order rows by principal in byte order.
	ListIdentities(ctx context.Context) ([]*models.Identity, error)
	ListRoles(ctx context.Context) ([]*models.RoleRecord, error)
	// ListEvents returns events with Seq > afterSeq in ascending order.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]*models.Event, error)
	LastSeq(ctx context.Context) (uint64, error)
	// ChainHeight is the last height stored with SetChainHeight, 0 when none.
	ChainHeight(ctx context.Context) (id.Height, error)
}

// Tx is the write view handed to RunInTx callbacks. Writes are visible to
// reads on the same Tx and to nobody else until the callback returns nil.
type Tx interface {
	Reader
	InsertIdentity(ctx context.Context, identity *models.Identity) error
	UpdateIdentity(ctx context.Context, identity *models.Identity) error
	InsertRole(ctx context.Context, record *models.RoleRecord) error
	UpdateRole(ctx context.Context, record *models.RoleRecord) error
	// AppendEvent assigns the next sequence number, sets it on event and
	// returns it. Sequences start at 1 and have no gaps.
	AppendEvent(ctx context.Context, event *models.Event) (uint64, error)
	SetChainHeight(ctx context.Context, height id.Height) error
}

// Store is a registry backend.
type Store interface {
	Reader
	// RunInTx runs fn atomically. Any error from fn discards every write made
	// through the Tx and is returned unchanged.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// PageLimit normalizes a caller supplied page size.
func PageLimit(limit int) int {
	if limit <= 0 || limit > DefaultPageSize {
		return DefaultPageSize
	}
	return limit
}
