// Package roles is the authoritative role/status table. Every authorization
// decision in the registry reads it; only admins write other principals' rows.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// Registry assigns roles and moves them through the status machine.
type Registry struct {
	logger *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New constructs a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Seed installs the deployer as the first admin. It is a no-op returning
// created=false when the deployer already has a row.
func (r *Registry) Seed(ctx context.Context, tx store.Tx, deployer id.Principal, height id.Height) (*models.RoleRecord, bool, error) {
	existing, found, err := r.GetRole(ctx, tx, deployer)
	if err != nil {
		return nil, false, err
	}
	if found {
		if !existing.IsActiveAdmin() {
			return nil, false, dErrors.New(dErrors.CodeInvalidState, "deployer is registered without admin authority")
		}
		return existing, false, nil
	}
	record := &models.RoleRecord{
		Principal:        deployer,
		Role:             models.RoleAdmin,
		Status:           models.RoleAdmin.InitialStatus(),
		AssignedBy:       deployer,
		AssignedAtHeight: height,
	}
	if err := tx.InsertRole(ctx, record); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed admin")
	}
	r.log(ctx, slog.LevelInfo, "admin seeded", "principal", deployer, "height", height)
	return record, true, nil
}

// GetRole reads a principal's role row. Absence is reported through found.
func (r *Registry) GetRole(ctx context.Context, reader store.Reader, principal id.Principal) (*models.RoleRecord, bool, error) {
	record, err := reader.FindRole(ctx, principal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role")
	}
	return record, true, nil
}

// IsAdmin reports whether principal currently holds admin authority.
func (r *Registry) IsAdmin(ctx context.Context, reader store.Reader, principal id.Principal) (bool, error) {
	record, found, err := r.GetRole(ctx, reader, principal)
	if err != nil || !found {
		return false, err
	}
	return record.IsActiveAdmin(), nil
}

// AssignRole creates the role row for principal on behalf of authority.
//
// Admin is never assignable through this path. Provider requires an admin
// authority. User may be self-assigned or assigned by an admin. A principal
// that already has a row gets ERR_ALREADY_REGISTERED.
func (r *Registry) AssignRole(ctx context.Context, tx store.Tx, principal id.Principal, role models.Role, authority id.Principal, height id.Height) (*models.RoleRecord, error) {
	if err := r.authorizeAssign(ctx, tx, principal, role, authority); err != nil {
		return nil, err
	}
	if _, found, err := r.GetRole(ctx, tx, principal); err != nil {
		return nil, err
	} else if found {
		return nil, dErrors.New(dErrors.CodeAlreadyRegistered, fmt.Sprintf("principal %s already has a role", principal))
	}

	record := &models.RoleRecord{
		Principal:        principal,
		Role:             role,
		Status:           role.InitialStatus(),
		AssignedBy:       authority,
		AssignedAtHeight: height,
	}
	if err := tx.InsertRole(ctx, record); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeAlreadyRegistered, "principal already has a role")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign role")
	}
	return record, nil
}

func (r *Registry) authorizeAssign(ctx context.Context, reader store.Reader, principal id.Principal, role models.Role, authority id.Principal) error {
	switch role {
	case models.RoleAdmin:
		return dErrors.New(dErrors.CodeUnauthorized, "admin role cannot be assigned")
	case models.RoleProvider:
		return r.requireAdmin(ctx, reader, authority)
	case models.RoleUser:
		if authority == principal {
			return r.requireNotRevoked(ctx, reader, authority)
		}
		return r.requireAdmin(ctx, reader, authority)
	default:
		return dErrors.New(dErrors.CodeInvalidScalar, "unknown role")
	}
}

// SetStatus moves principal's row to status on behalf of an admin authority.
// It returns the updated row and the status it left.
func (r *Registry) SetStatus(ctx context.Context, tx store.Tx, principal id.Principal, status models.Status, authority id.Principal, height id.Height) (*models.RoleRecord, models.Status, error) {
	if err := r.requireAdmin(ctx, tx, authority); err != nil {
		return nil, "", err
	}
	record, found, err := r.GetRole(ctx, tx, principal)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("principal %s has no role", principal))
	}
	prior := record.Status
	if !prior.CanTransitionTo(status) {
		return nil, "", dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot move %s from %s to %s", principal, prior, status))
	}
	if status == models.StatusRevoked && principal == authority {
		return nil, "", dErrors.New(dErrors.CodeInvalidState, "admins cannot revoke themselves")
	}

	record.ApplyStatus(status, authority, height)
	if err := tx.UpdateRole(ctx, record); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update role")
	}
	if status == models.StatusRevoked {
		r.log(ctx, slog.LevelWarn, "role revoked", "principal", principal, "prior_status", prior, "by", authority, "height", height)
	}
	return record, prior, nil
}

func (r *Registry) requireAdmin(ctx context.Context, reader store.Reader, authority id.Principal) error {
	ok, err := r.IsAdmin(ctx, reader, authority)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "admin authority required")
	}
	return nil
}

// requireNotRevoked lets unregistered principals through; a revoked caller
// has no authority at all.
func (r *Registry) requireNotRevoked(ctx context.Context, reader store.Reader, authority id.Principal) error {
	record, found, err := r.GetRole(ctx, reader, authority)
	if err != nil {
		return err
	}
	if found && record.Status == models.StatusRevoked {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is revoked")
	}
	return nil
}

func (r *Registry) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Log(ctx, level, msg, args...)
}
