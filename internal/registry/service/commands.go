package service

import (
	"context"
	"time"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/registry/guard"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	"pedersen-identity/pkg/requestcontext"
)

// RegisterIdentityRequest carries register-identity arguments. Blinding is an
// optional 32-byte hex scalar.
type RegisterIdentityRequest struct {
	Principal   string
	DisplayName string
	RoleCode    uint64
	Blinding    string
}

// RegisterProviderRequest carries register-provider arguments.
type RegisterProviderRequest struct {
	Principal string
	Name      string
	Blinding  string
}

// VerifyIdentityRequest carries verify-identity arguments.
type VerifyIdentityRequest struct {
	Target   string
	Decision string
}

// UpdateCommitmentRequest carries update-commitment arguments. Commitment is
// the hex encoding of the new point.
type UpdateCommitmentRequest struct {
	Target     string
	Commitment string
}

// RevokeIdentityRequest carries revoke-identity arguments.
type RevokeIdentityRequest struct {
	Target string
}

// RegisterIdentity binds a principal to a commitment of its display name
// under the requested role. The caller is read from ctx.
func (s *Service) RegisterIdentity(ctx context.Context, req RegisterIdentityRequest) ([]*models.Event, error) {
	caller := requestcontext.Caller(ctx)
	target, err := parsePrincipal(req.Principal)
	if err != nil {
		return nil, s.reject(ctx, models.OpRegisterIdentity, err)
	}
	role, err := models.ParseRoleCode(req.RoleCode)
	if err != nil {
		return nil, s.reject(ctx, models.OpRegisterIdentity, err)
	}

	gr := guard.Request{Caller: caller, Operation: models.OpRegisterIdentity, Target: target, Role: role}
	return s.mutate(ctx, gr, func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error {
		return s.register(ctx, tx, emit, target, role, req.DisplayName, req.Blinding)
	})
}

// RegisterProvider registers a provider pending verification. Admin only.
func (s *Service) RegisterProvider(ctx context.Context, req RegisterProviderRequest) ([]*models.Event, error) {
	caller := requestcontext.Caller(ctx)
	target, err := parsePrincipal(req.Principal)
	if err != nil {
		return nil, s.reject(ctx, models.OpRegisterProvider, err)
	}

	gr := guard.Request{Caller: caller, Operation: models.OpRegisterProvider, Target: target, Role: models.RoleProvider}
	return s.mutate(ctx, gr, func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error {
		return s.register(ctx, tx, emit, target, models.RoleProvider, req.Name, req.Blinding)
	})
}

func (s *Service) register(ctx context.Context, tx store.Tx, emit func(*models.Event) error, target id.Principal, role models.Role, name, blindingHex string) error {
	caller, height := requestcontext.Caller(ctx), requestcontext.Height(ctx)
	c, err := s.commitDisplayName(target, height, name, blindingHex)
	if err != nil {
		return err
	}
	ident, err := s.identities.Register(ctx, tx, target, c, role, name, caller, height)
	if err != nil {
		return err
	}
	return emit(models.NewRegisteredEvent(ident, caller))
}

// VerifyIdentity records an admin decision on a pending provider.
func (s *Service) VerifyIdentity(ctx context.Context, req VerifyIdentityRequest) ([]*models.Event, error) {
	caller := requestcontext.Caller(ctx)
	target, err := parsePrincipal(req.Target)
	if err != nil {
		return nil, s.reject(ctx, models.OpVerifyIdentity, err)
	}

	gr := guard.Request{Caller: caller, Operation: models.OpVerifyIdentity, Target: target}
	return s.mutate(ctx, gr, func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error {
		decision, err := models.ParseDecision(req.Decision)
		if err != nil {
			return err
		}
		return s.transition(ctx, tx, emit, target, decision.Status())
	})
}

// RevokeIdentity moves any non-revoked principal to the terminal revoked
// status. Admin only.
func (s *Service) RevokeIdentity(ctx context.Context, req RevokeIdentityRequest) ([]*models.Event, error) {
	caller := requestcontext.Caller(ctx)
	target, err := parsePrincipal(req.Target)
	if err != nil {
		return nil, s.reject(ctx, models.OpRevokeIdentity, err)
	}

	gr := guard.Request{Caller: caller, Operation: models.OpRevokeIdentity, Target: target}
	return s.mutate(ctx, gr, func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error {
		return s.transition(ctx, tx, emit, target, models.StatusRevoked)
	})
}

func (s *Service) transition(ctx context.Context, tx store.Tx, emit func(*models.Event) error, target id.Principal, status models.Status) error {
	caller, height := requestcontext.Caller(ctx), requestcontext.Height(ctx)
	record, prior, err := s.roles.SetStatus(ctx, tx, target, status, caller, height)
	if err != nil {
		return err
	}
	if _, err := s.identities.ApplyStatus(ctx, tx, target, status, caller, height); err != nil {
		return err
	}
	return emit(models.NewStatusEvent(record, prior, caller, height))
}

// UpdateCommitment rotates the target's commitment. Owner or admin.
func (s *Service) UpdateCommitment(ctx context.Context, req UpdateCommitmentRequest) ([]*models.Event, error) {
	caller, height := requestcontext.Caller(ctx), requestcontext.Height(ctx)
	target, err := parsePrincipal(req.Target)
	if err != nil {
		return nil, s.reject(ctx, models.OpUpdateCommitment, err)
	}

	gr := guard.Request{Caller: caller, Operation: models.OpUpdateCommitment, Target: target}
	return s.mutate(ctx, gr, func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error {
		c, err := commitment.ParseCommitmentHex(req.Commitment)
		if err != nil {
			return err
		}
		ident, prior, err := s.identities.UpdateCommitment(ctx, tx, target, c, caller, height)
		if err != nil {
			return err
		}
		return emit(models.NewRotatedEvent(ident, prior, caller, height))
	})
}

// reject records a call that failed argument parsing before authorization.
func (s *Service) reject(ctx context.Context, op models.Operation, err error) error {
	ctx, span := s.tracer.Start(ctx, string(op))
	defer span.End()
	s.observe(ctx, span, guard.Request{Caller: requestcontext.Caller(ctx), Operation: op}, time.Now(), err)
	return err
}
