package ledger

import (
	"context"
	"reflect"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/service"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// handler runs one operation and returns its ok value plus the events the
// call committed.
type handler func(ctx context.Context, svc *service.Service, args Args) (any, []*models.Event, error)

var handlers = map[models.Operation]handler{
	models.OpRegisterIdentity: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		events, err := svc.RegisterIdentity(ctx, service.RegisterIdentityRequest{
			Principal: a.Principal, DisplayName: a.DisplayName, RoleCode: a.RoleCode, Blinding: a.Blinding,
		})
		return true, events, err
	},
	models.OpRegisterProvider: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		name := a.Name
		if name == "" {
			name = a.DisplayName
		}
		events, err := svc.RegisterProvider(ctx, service.RegisterProviderRequest{
			Principal: a.Principal, Name: name, Blinding: a.Blinding,
		})
		return true, events, err
	},
	models.OpVerifyIdentity: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		events, err := svc.VerifyIdentity(ctx, service.VerifyIdentityRequest{Target: a.target(), Decision: a.Decision})
		return true, events, err
	},
	models.OpUpdateCommitment: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		events, err := svc.UpdateCommitment(ctx, service.UpdateCommitmentRequest{Target: a.target(), Commitment: a.Commitment})
		return true, events, err
	},
	models.OpRevokeIdentity: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		events, err := svc.RevokeIdentity(ctx, service.RevokeIdentityRequest{Target: a.target()})
		return true, events, err
	},
	models.OpGetIdentity: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		return lookup(svc.GetIdentity(ctx, a.Principal))
	},
	models.OpGetProvider: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		return lookup(svc.GetProvider(ctx, a.Principal))
	},
	models.OpGetRole: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		return lookup(svc.GetRole(ctx, a.Principal))
	},
	models.OpOpenCommitment: func(ctx context.Context, svc *service.Service, a Args) (any, []*models.Event, error) {
		ok, err := svc.OpenCommitment(ctx, service.OpenCommitmentRequest{
			Principal: a.Principal, DisplayName: a.DisplayName, Blinding: a.Blinding,
		})
		return ok, nil, err
	},
}

// target falls back to Principal so callers may use either key.
func (a Args) target() string {
	if a.Target != "" {
		return a.Target
	}
	return a.Principal
}

// lookup adapts a getter to the read contract: a malformed principal reads
// as none, only host faults fail.
func lookup[T any](v T, found bool, err error) (any, []*models.Event, error) {
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidScalar) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !found || reflect.ValueOf(v).IsNil() {
		return nil, nil, nil
	}
	return v, nil, nil
}

func dispatch(ctx context.Context, svc *service.Service, call Call) (Response, []uint64) {
	h, ok := handlers[call.Operation]
	if !ok {
		return Response{Err: dErrors.CodeUnauthorized}, nil
	}
	v, events, err := h(ctx, svc, call.Args)
	if err != nil {
		return Err(err), nil
	}
	seqs := make([]uint64, 0, len(events))
	for _, evt := range events {
		seqs = append(seqs, evt.Seq)
	}
	return Ok(v), seqs
}
