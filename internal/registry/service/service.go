// Package service orchestrates one registry call: authorize, compute the
// commitment, mutate the tables and append the event, all inside a single
// store transaction. Committed events are handed to the publisher afterwards.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/eventlog"
	"pedersen-identity/internal/platform/metrics"
	"pedersen-identity/internal/registry/guard"
	"pedersen-identity/internal/registry/identity"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/roles"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
	"pedersen-identity/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// DisplayNameField is the attribute label committed to for display names.
const DisplayNameField = "display-name"

// Publisher receives events after their transaction committed.
type Publisher interface {
	Publish(ctx context.Context, events []*models.Event)
}

// Service is the registry orchestrator.
type Service struct {
	store      store.Store
	roles      *roles.Registry
	identities *identity.Store
	guard      *guard.Guard
	log        *eventlog.Log
	engine     *commitment.Engine

	persistCleartext bool
	publisher        Publisher
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithPersistCleartext stores display names next to their commitments.
func WithPersistCleartext(enabled bool) Option {
	return func(s *Service) {
		s.persistCleartext = enabled
	}
}

// New constructs a Service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: commitment.New(),
		tracer: otel.Tracer("pedersen-identity/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.roles = roles.New(roles.WithLogger(s.logger))
	s.identities = identity.New(s.roles,
		identity.WithLogger(s.logger),
		identity.WithPersistCleartext(s.persistCleartext),
	)
	s.guard = guard.New(s.roles)
	s.log = eventlog.New(eventlog.WithMetrics(s.metrics))
	return s
}

// Engine exposes the commitment engine.
func (s *Service) Engine() *commitment.Engine { return s.engine }

// Seed installs the deployer as the first admin at the height carried by ctx.
// Seeding an already seeded store is a no-op.
func (s *Service) Seed(ctx context.Context, deployer id.Principal) error {
	height := requestcontext.Height(ctx)
	var events []*models.Event
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		events = nil
		_, created, err := s.roles.Seed(ctx, tx, deployer, height)
		if err != nil || !created {
			return err
		}
		evt := models.NewAdminSeededEvent(deployer, height)
		if _, err := s.log.Append(ctx, tx, evt); err != nil {
			return err
		}
		events = append(events, evt)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

// AdvanceHeight records height as the last mined block. It runs before the
// block's calls so a block whose calls all fail still consumes its height.
func (s *Service) AdvanceHeight(ctx context.Context, height id.Height) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.ChainHeight(ctx)
		if err != nil {
			return err
		}
		if height <= current {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("height %d already mined", height))
		}
		return tx.SetChainHeight(ctx, height)
	})
	if err != nil && !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record chain height")
	}
	return err
}

// mutate runs fn in a transaction after the guard approves req, records
// telemetry and publishes the events fn appended.
func (s *Service) mutate(ctx context.Context, req guard.Request, fn func(ctx context.Context, tx store.Tx, emit func(*models.Event) error) error) ([]*models.Event, error) {
	ctx, span := s.tracer.Start(ctx, string(req.Operation), trace.WithAttributes(
		attribute.String("registry.caller", req.Caller.String()),
		attribute.String("registry.target", req.Target.String()),
		attribute.Int64("registry.height", int64(requestcontext.Height(ctx))),
	))
	defer span.End()
	start := time.Now()

	var events []*models.Event
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		events = nil
		if err := s.guard.Authorize(ctx, tx, req); err != nil {
			return err
		}
		return fn(ctx, tx, func(evt *models.Event) error {
			if _, err := s.log.Append(ctx, tx, evt); err != nil {
				return err
			}
			events = append(events, evt)
			return nil
		})
	})

	s.observe(ctx, span, req, start, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return events, nil
}

// query runs a read under the guard without a write transaction.
func (s *Service) query(ctx context.Context, req guard.Request, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, string(req.Operation), trace.WithAttributes(
		attribute.String("registry.target", req.Target.String()),
	))
	defer span.End()
	start := time.Now()

	err := s.guard.Authorize(ctx, s.store, req)
	if err == nil {
		err = fn(ctx)
	}
	s.observe(ctx, span, req, start, err)
	return err
}

func (s *Service) observe(ctx context.Context, span trace.Span, req guard.Request, start time.Time, err error) {
	code := "ok"
	if err != nil {
		code = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}
	span.SetAttributes(attribute.String("registry.code", code))
	s.metrics.ObserveCall(string(req.Operation), code, time.Since(start))

	if s.logger == nil || req.Operation.IsReadOnly() && err == nil {
		return
	}
	level := slog.LevelInfo
	msg := "call accepted"
	if err != nil {
		level = slog.LevelWarn
		msg = "call rejected"
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
	}
	s.logger.Log(ctx, level, msg,
		"operation", req.Operation,
		"caller", req.Caller,
		"target", req.Target,
		"code", code,
		"height", requestcontext.Height(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) publish(ctx context.Context, events []*models.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	s.publisher.Publish(ctx, events)
}

// parsePrincipal validates a principal argument.
func parsePrincipal(raw string) (id.Principal, error) {
	p, err := id.ParsePrincipal(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidScalar, "invalid principal")
	}
	return p, nil
}

// commitDisplayName computes the commitment for name. An empty blinding
// argument falls back to the deterministic derivation.
func (s *Service) commitDisplayName(owner id.Principal, height id.Height, name, blindingHex string) (commitment.Commitment, error) {
	if err := models.ValidateDisplayName(name); err != nil {
		return commitment.Commitment{}, err
	}
	blinding, err := s.blinding(owner, height, name, blindingHex)
	if err != nil {
		return commitment.Commitment{}, err
	}
	return s.engine.Commit(commitment.ValueFromAttribute(DisplayNameField, name), blinding), nil
}

func (s *Service) blinding(owner id.Principal, height id.Height, name, blindingHex string) (commitment.Scalar, error) {
	if blindingHex == "" {
		return commitment.DeriveBlinding(owner, height, name), nil
	}
	return commitment.ParseScalarHex(blindingHex)
}
