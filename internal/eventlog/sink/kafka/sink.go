// Package kafka publishes registry events to a Kafka topic keyed by principal,
// so every event for one principal lands on one partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"pedersen-identity/internal/registry/models"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink writes one record per event.
type Sink struct {
	producer Producer
	topic    string
}

// New constructs a Sink.
func New(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

func (s *Sink) Name() string { return "kafka" }

// Publish produces events synchronously and returns the first failure.
func (s *Sink) Publish(ctx context.Context, events []*models.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, evt := range events {
		record, err := s.record(evt)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce events: %w", err)
	}
	return nil
}

func (s *Sink) record(evt *models.Event) (*kgo.Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event %d: %w", evt.Seq, err)
	}
	return &kgo.Record{
		Topic: s.topic,
		Key:   []byte(evt.Principal.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "seq", Value: []byte(strconv.FormatUint(evt.Seq, 10))},
		},
	}, nil
}
