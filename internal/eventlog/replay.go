package eventlog

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	"pedersen-identity/internal/registry/store/memory"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

const replayPageSize = store.DefaultPageSize

// Applier consumes replayed events in sequence order.
type Applier interface {
	Apply(ctx context.Context, event *models.Event) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, event *models.Event) error

func (f ApplierFunc) Apply(ctx context.Context, event *models.Event) error { return f(ctx, event) }

// ReplayOptions bounds a replay. UntilSeq zero means no upper bound.
type ReplayOptions struct {
	AfterSeq uint64
	UntilSeq uint64
	Filter   func(*models.Event) bool
}

// Replay pages through source and applies events in order. It returns the
// last sequence number visited.
func Replay(ctx context.Context, source store.Reader, applier Applier, options ReplayOptions) (uint64, error) {
	if source == nil {
		return 0, fmt.Errorf("event source is not configured")
	}
	if applier == nil {
		return 0, fmt.Errorf("applier is required")
	}

	lastSeq := options.AfterSeq
	for {
		if err := ctx.Err(); err != nil {
			return lastSeq, err
		}
		events, err := source.ListEvents(ctx, lastSeq, replayPageSize)
		if err != nil {
			return lastSeq, err
		}
		if len(events) == 0 {
			return lastSeq, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return lastSeq, nil
			}
			if evt.Seq != lastSeq+1 {
				return lastSeq, fmt.Errorf("event log gap: expected seq %d, got %d", lastSeq+1, evt.Seq)
			}
			lastSeq = evt.Seq
			if options.Filter != nil && !options.Filter(evt) {
				continue
			}
			if err := applier.Apply(ctx, evt); err != nil {
				return lastSeq, fmt.Errorf("apply event %d: %w", evt.Seq, err)
			}
		}
	}
}

// Rebuild replays the whole log of source into a fresh in-memory store.
// Events are copied into the rebuilt store too, so the result is a complete
// replica.
func Rebuild(ctx context.Context, source store.Reader) (*memory.Store, error) {
	target := memory.New()
	_, err := Replay(ctx, source, ApplierFunc(func(ctx context.Context, evt *models.Event) error {
		return target.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return applyEvent(ctx, tx, evt)
		})
	}), ReplayOptions{})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// applyEvent projects one event onto the tables of tx and re-appends it.
func applyEvent(ctx context.Context, tx store.Tx, evt *models.Event) error {
	switch evt.Type {
	case models.EventAdminSeeded:
		if err := tx.InsertRole(ctx, roleFromEvent(evt)); err != nil {
			return err
		}
	case models.EventIdentityRegistered, models.EventProviderRegistered:
		if err := tx.InsertRole(ctx, roleFromEvent(evt)); err != nil {
			return err
		}
		ident := &models.Identity{
			Owner:              evt.Principal,
			DisplayName:        evt.DisplayName,
			Role:               evt.Role,
			Commitment:         evt.Commitment,
			Status:             evt.Status,
			RegisteredAtHeight: evt.Height,
			UpdatedAtHeight:    evt.Height,
		}
		if err := tx.InsertIdentity(ctx, ident); err != nil {
			return err
		}
	case models.EventIdentityVerified, models.EventIdentityRejected, models.EventIdentityRevoked:
		record, err := tx.FindRole(ctx, evt.Principal)
		if err != nil {
			return fmt.Errorf("role for %s: %w", evt.Principal, err)
		}
		record.ApplyStatus(evt.Status, evt.Actor, evt.Height)
		if err := tx.UpdateRole(ctx, record); err != nil {
			return err
		}
		ident, err := tx.FindIdentity(ctx, evt.Principal)
		switch {
		case err == nil:
			ident.ApplyStatus(evt.Status, evt.Actor, evt.Height)
			if err := tx.UpdateIdentity(ctx, ident); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	case models.EventCommitmentRotated:
		ident, err := tx.FindIdentity(ctx, evt.Principal)
		if err != nil {
			return fmt.Errorf("identity for %s: %w", evt.Principal, err)
		}
		ident.ApplyCommitment(evt.Commitment, evt.Height)
		if err := tx.UpdateIdentity(ctx, ident); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
	_, err := tx.AppendEvent(ctx, evt.Clone())
	return err
}

func roleFromEvent(evt *models.Event) *models.RoleRecord {
	return &models.RoleRecord{
		Principal:        evt.Principal,
		Role:             evt.Role,
		Status:           evt.Status,
		AssignedBy:       evt.Actor,
		AssignedAtHeight: evt.Height,
	}
}

// VerifyConsistency rebuilds live from its own log and compares the result
// with the live tables.
func VerifyConsistency(ctx context.Context, live store.Reader) error {
	rebuilt, err := Rebuild(ctx, live)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "event log does not replay")
	}

	liveIdentities, err := live.ListIdentities(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identities")
	}
	replayedIdentities, _ := rebuilt.ListIdentities(ctx)
	if p, ok := firstIdentityMismatch(liveIdentities, replayedIdentities); !ok {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("identity table diverges from event log at %s", p))
	}

	liveRoles, err := live.ListRoles(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	replayedRoles, _ := rebuilt.ListRoles(ctx)
	if p, ok := firstRoleMismatch(liveRoles, replayedRoles); !ok {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("role table diverges from event log at %s", p))
	}
	return nil
}

// firstIdentityMismatch pairs rows by owner so listing order never matters.
func firstIdentityMismatch(live, replayed []*models.Identity) (string, bool) {
	byOwner := make(map[id.Principal]*models.Identity, len(replayed))
	for _, ident := range replayed {
		byOwner[ident.Owner] = ident
	}
	for _, ident := range live {
		other, ok := byOwner[ident.Owner]
		if !ok || !reflect.DeepEqual(ident, other) {
			return ident.Owner.String(), false
		}
		delete(byOwner, ident.Owner)
	}
	for owner := range byOwner {
		return owner.String(), false
	}
	return "", true
}

func firstRoleMismatch(live, replayed []*models.RoleRecord) (string, bool) {
	byPrincipal := make(map[id.Principal]*models.RoleRecord, len(replayed))
	for _, record := range replayed {
		byPrincipal[record.Principal] = record
	}
	for _, record := range live {
		other, ok := byPrincipal[record.Principal]
		if !ok || !reflect.DeepEqual(record, other) {
			return record.Principal.String(), false
		}
		delete(byPrincipal, record.Principal)
	}
	for principal := range byPrincipal {
		return principal.String(), false
	}
	return "", true
}
