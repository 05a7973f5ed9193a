package service

import (
	"context"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/eventlog"
	"pedersen-identity/internal/registry/guard"
	"pedersen-identity/internal/registry/models"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
	"pedersen-identity/pkg/requestcontext"
)

// OpenCommitmentRequest asks whether the stored commitment opens to
// DisplayName under Blinding. An empty Blinding uses the derived fallback
// for the registration height.
type OpenCommitmentRequest struct {
	Principal   string
	DisplayName string
	Blinding    string
}

// GetIdentity returns the identity row for principal; found is false when
// none exists.
func (s *Service) GetIdentity(ctx context.Context, principal string) (*models.Identity, bool, error) {
	var (
		ident *models.Identity
		found bool
	)
	err := s.read(ctx, models.OpGetIdentity, principal, func(ctx context.Context, p id.Principal) error {
		var err error
		ident, found, err = s.identities.Get(ctx, s.store, p)
		return err
	})
	return ident, found, err
}

// GetProvider returns the provider view; found is false for unknown
// principals and for identities that are not providers.
func (s *Service) GetProvider(ctx context.Context, principal string) (*models.Provider, bool, error) {
	var (
		provider *models.Provider
		found    bool
	)
	err := s.read(ctx, models.OpGetProvider, principal, func(ctx context.Context, p id.Principal) error {
		ident, ok, err := s.identities.Get(ctx, s.store, p)
		if err != nil || !ok {
			return err
		}
		provider, found = ident.ProviderView()
		return nil
	})
	return provider, found, err
}

// GetRole returns the role row for principal.
func (s *Service) GetRole(ctx context.Context, principal string) (*models.RoleRecord, bool, error) {
	var (
		record *models.RoleRecord
		found  bool
	)
	err := s.read(ctx, models.OpGetRole, principal, func(ctx context.Context, p id.Principal) error {
		var err error
		record, found, err = s.roles.GetRole(ctx, s.store, p)
		return err
	})
	return record, found, err
}

// OpenCommitment checks an opening against the stored commitment without
// revealing anything beyond the boolean.
func (s *Service) OpenCommitment(ctx context.Context, req OpenCommitmentRequest) (bool, error) {
	var opened bool
	err := s.read(ctx, models.OpOpenCommitment, req.Principal, func(ctx context.Context, p id.Principal) error {
		ident, found, err := s.identities.Get(ctx, s.store, p)
		if err != nil {
			return err
		}
		if !found {
			return dErrors.New(dErrors.CodeNotFound, "no identity for principal")
		}
		blinding, err := s.blinding(p, ident.RegisteredAtHeight, req.DisplayName, req.Blinding)
		if err != nil {
			return err
		}
		opened = s.engine.Open(ident.Commitment, commitment.ValueFromAttribute(DisplayNameField, req.DisplayName), blinding)
		return nil
	})
	return opened, err
}

// Events pages the event log.
func (s *Service) Events(ctx context.Context, afterSeq uint64, limit int) ([]*models.Event, error) {
	return s.log.List(ctx, s.store, afterSeq, limit)
}

// LastSeq is the sequence number of the newest event, 0 when empty.
func (s *Service) LastSeq(ctx context.Context) (uint64, error) {
	last, err := s.store.LastSeq(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read last event")
	}
	return last, nil
}

// ChainHeight is the last recorded block height.
func (s *Service) ChainHeight(ctx context.Context) (id.Height, error) {
	height, err := s.store.ChainHeight(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read chain height")
	}
	return height, nil
}

// VerifyConsistency replays the event log and compares it with the tables.
func (s *Service) VerifyConsistency(ctx context.Context) error {
	return eventlog.VerifyConsistency(ctx, s.store)
}

func (s *Service) read(ctx context.Context, op models.Operation, raw string, fn func(ctx context.Context, p id.Principal) error) error {
	p, err := parsePrincipal(raw)
	if err != nil {
		return s.reject(ctx, op, err)
	}
	req := guard.Request{Caller: requestcontext.Caller(ctx), Operation: op, Target: p}
	return s.query(ctx, req, func(ctx context.Context) error {
		return fn(ctx, p)
	})
}
