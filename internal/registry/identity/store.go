// Package identity owns the identity table: one row per principal holding
// its commitment, role and status.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/roles"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// Store registers identities and rotates their commitments. Role legality is
// delegated to the role registry; callers run every method inside
// store.Store.RunInTx so a rejection leaves nothing behind.
type Store struct {
	roles            *roles.Registry
	persistCleartext bool
	logger           *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPersistCleartext stores the display name next to its commitment.
func WithPersistCleartext(enabled bool) Option {
	return func(s *Store) {
		s.persistCleartext = enabled
	}
}

// New constructs a Store.
func New(roleRegistry *roles.Registry, opts ...Option) *Store {
	s := &Store{roles: roleRegistry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the identity row and its role assignment.
func (s *Store) Register(ctx context.Context, tx store.Tx, principal id.Principal, c commitment.Commitment, role models.Role, displayName string, authority id.Principal, height id.Height) (*models.Identity, error) {
	if _, err := s.roles.AssignRole(ctx, tx, principal, role, authority, height); err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) {
			return nil, dErrors.Wrap(err, dErrors.CodeDuplicateIdentity, "identity already registered")
		}
		return nil, err
	}

	stored := ""
	if s.persistCleartext {
		stored = displayName
	}
	ident, err := models.NewIdentity(principal, role, c, stored, height)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertIdentity(ctx, ident); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeDuplicateIdentity, "identity already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert identity")
	}
	return ident, nil
}

// Get reads an identity. Absence is reported through found.
func (s *Store) Get(ctx context.Context, reader store.Reader, principal id.Principal) (*models.Identity, bool, error) {
	ident, err := reader.FindIdentity(ctx, principal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return ident, true, nil
}

// UpdateCommitment replaces the principal's commitment and returns the one
// it replaced.
func (s *Store) UpdateCommitment(ctx context.Context, tx store.Tx, principal id.Principal, c commitment.Commitment, authority id.Principal, height id.Height) (*models.Identity, commitment.Commitment, error) {
	if c.IsZero() {
		return nil, commitment.Commitment{}, dErrors.New(dErrors.CodeInvalidScalar, "commitment is required")
	}
	if authority != principal {
		isAdmin, err := s.roles.IsAdmin(ctx, tx, authority)
		if err != nil {
			return nil, commitment.Commitment{}, err
		}
		if !isAdmin {
			return nil, commitment.Commitment{}, dErrors.New(dErrors.CodeUnauthorized, "only the owner or an admin may rotate a commitment")
		}
	}

	ident, found, err := s.Get(ctx, tx, principal)
	if err != nil {
		return nil, commitment.Commitment{}, err
	}
	if !found {
		return nil, commitment.Commitment{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no identity for %s", principal))
	}
	if ident.Status == models.StatusRevoked {
		return nil, commitment.Commitment{}, dErrors.New(dErrors.CodeInvalidState, "identity is revoked")
	}
	if ident.Commitment == c {
		return nil, commitment.Commitment{}, dErrors.New(dErrors.CodeDuplicateIdentity, "commitment is unchanged")
	}

	prior := ident.Commitment
	ident.ApplyCommitment(c, height)
	if err := tx.UpdateIdentity(ctx, ident); err != nil {
		return nil, commitment.Commitment{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "commitment rotated", "principal", principal, "by", authority, "height", height)
	}
	return ident, prior, nil
}

// ApplyStatus mirrors a role-registry transition onto the identity row. Roles
// without an identity row (the seeded admin) are skipped.
func (s *Store) ApplyStatus(ctx context.Context, tx store.Tx, principal id.Principal, status models.Status, by id.Principal, height id.Height) (*models.Identity, error) {
	ident, found, err := s.Get(ctx, tx, principal)
	if err != nil || !found {
		return nil, err
	}
	ident.ApplyStatus(status, by, height)
	if err := tx.UpdateIdentity(ctx, ident); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity status")
	}
	return ident, nil
}
