package eventlog

import (
	"context"
	"log/slog"

	"pedersen-identity/internal/platform/metrics"
	"pedersen-identity/internal/registry/models"
)

//go:generate mockgen -source=sink.go -destination=mocks/mocks.go -package=mocks

// Sink receives committed events after the block that produced them.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []*models.Event) error
}

// Fanout delivers events to every sink. Failures are logged and counted and
// never reach the caller: the ledger outcome is already committed.
type Fanout struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type FanoutOption func(*Fanout)

func WithFanoutLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func WithFanoutMetrics(m *metrics.Metrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// NewFanout constructs a Fanout. Nil sinks are skipped.
func NewFanout(sinks []Sink, opts ...FanoutOption) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish sends events to each sink in turn.
func (f *Fanout) Publish(ctx context.Context, events []*models.Event) {
	if len(events) == 0 {
		return
	}
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			f.metrics.IncrementSinkFailures(sink.Name())
			if f.logger != nil {
				f.logger.WarnContext(ctx, "event sink publish failed",
					"sink", sink.Name(),
					"first_seq", events[0].Seq,
					"count", len(events),
					"error", err,
				)
			}
		}
	}
}

// Len reports the number of configured sinks.
func (f *Fanout) Len() int { return len(f.sinks) }
