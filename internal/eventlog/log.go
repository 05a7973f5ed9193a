// Package eventlog is the append-only history of accepted registry
// transitions. Replaying it from the first event rebuilds the identity and
// role tables exactly.
package eventlog

import (
	"context"
	"fmt"

	"pedersen-identity/internal/platform/metrics"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	dErrors "pedersen-identity/pkg/domain-errors"
)

var knownTypes = map[models.EventType]struct{}{
	models.EventAdminSeeded:        {},
	models.EventIdentityRegistered: {},
	models.EventProviderRegistered: {},
	models.EventIdentityVerified:   {},
	models.EventIdentityRejected:   {},
	models.EventCommitmentRotated:  {},
	models.EventIdentityRevoked:    {},
}

// Log appends and pages events through a store transaction.
type Log struct {
	metrics *metrics.Metrics
}

type Option func(*Log)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

// New constructs a Log.
func New(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes event in tx and returns its sequence number.
func (l *Log) Append(ctx context.Context, tx store.Tx, event *models.Event) (uint64, error) {
	if event == nil {
		return 0, dErrors.New(dErrors.CodeInternal, "event is required")
	}
	if _, ok := knownTypes[event.Type]; !ok {
		return 0, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown event type %q", event.Type))
	}
	seq, err := tx.AppendEvent(ctx, event)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
	}
	l.metrics.IncrementEventsAppended(string(event.Type))
	return seq, nil
}

// List returns up to limit events after afterSeq.
func (l *Log) List(ctx context.Context, reader store.Reader, afterSeq uint64, limit int) ([]*models.Event, error) {
	events, err := reader.ListEvents(ctx, afterSeq, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}
