// Package guard decides whether a caller may perform an operation. It reads
// the role table and never writes.
package guard

import (
	"context"
	"fmt"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/roles"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// Request describes one call to authorize. Role is the requested role for
// register-identity and ignored otherwise.
type Request struct {
	Caller    id.Principal
	Operation models.Operation
	Target    id.Principal
	Role      models.Role
}

type rule func(ctx context.Context, g *Guard, reader store.Reader, req Request) error

// Guard evaluates the per-operation rule table.
type Guard struct {
	roles *roles.Registry
	rules map[models.Operation]rule
}

// New constructs a Guard backed by the role registry.
func New(roleRegistry *roles.Registry) *Guard {
	return &Guard{
		roles: roleRegistry,
		rules: map[models.Operation]rule{
			models.OpRegisterIdentity: authorizeRegisterIdentity,
			models.OpRegisterProvider: requireAdmin,
			models.OpVerifyIdentity:   authorizeVerify,
			models.OpUpdateCommitment: requireOwnerOrAdmin,
			models.OpRevokeIdentity:   requireAdmin,
			models.OpGetIdentity:      public,
			models.OpGetProvider:      public,
			models.OpGetRole:          public,
			models.OpOpenCommitment:   public,
		},
	}
}

// Authorize returns nil when req may proceed, or a coded error.
func (g *Guard) Authorize(ctx context.Context, reader store.Reader, req Request) error {
	check, ok := g.rules[req.Operation]
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("unknown operation %q", req.Operation))
	}
	return check(ctx, g, reader, req)
}

func public(context.Context, *Guard, store.Reader, Request) error { return nil }

func authorizeRegisterIdentity(ctx context.Context, g *Guard, reader store.Reader, req Request) error {
	switch req.Role {
	case models.RoleAdmin:
		return dErrors.New(dErrors.CodeUnauthorized, "admin role cannot be registered")
	case models.RoleProvider:
		return requireAdmin(ctx, g, reader, req)
	case models.RoleUser:
		return requireOwnerOrAdmin(ctx, g, reader, req)
	default:
		return dErrors.New(dErrors.CodeInvalidScalar, "unknown role")
	}
}

func authorizeVerify(ctx context.Context, g *Guard, reader store.Reader, req Request) error {
	if err := requireAdmin(ctx, g, reader, req); err != nil {
		return err
	}
	record, found, err := g.roles.GetRole(ctx, reader, req.Target)
	if err != nil {
		return err
	}
	if !found || record.Role != models.RoleProvider || record.Status != models.StatusPendingVerification {
		return dErrors.New(dErrors.CodeInvalidState, "target is not a provider pending verification")
	}
	return nil
}

func requireAdmin(ctx context.Context, g *Guard, reader store.Reader, req Request) error {
	ok, err := g.roles.IsAdmin(ctx, reader, req.Caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "admin authority required")
	}
	return nil
}

func requireOwnerOrAdmin(ctx context.Context, g *Guard, reader store.Reader, req Request) error {
	if req.Caller != req.Target {
		return requireAdmin(ctx, g, reader, req)
	}
	record, found, err := g.roles.GetRole(ctx, reader, req.Caller)
	if err != nil {
		return err
	}
	if found && record.Status == models.StatusRevoked {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is revoked")
	}
	return nil
}
