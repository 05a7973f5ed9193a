// Package redis appends registry events to a Redis stream. Stream entry IDs
// are "<seq>-0", so a re-published event is rejected by Redis instead of
// duplicated.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"pedersen-identity/internal/registry/models"
)

// Sink writes events with XADD.
type Sink struct {
	client redis.Cmdable
	stream string
}

// New constructs a Sink.
func New(client redis.Cmdable, stream string) *Sink {
	return &Sink{client: client, stream: stream}
}

func (s *Sink) Name() string { return "redis" }

// Publish adds every event in one pipeline. An entry whose ID is not above
// the stream's last ID was already published and is skipped.
func (s *Sink) Publish(ctx context.Context, events []*models.Event) error {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", evt.Seq, err)
		}
		cmds = append(cmds, pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			ID:     StreamID(evt.Seq),
			Values: map[string]any{
				"type":      string(evt.Type),
				"principal": evt.Principal.String(),
				"payload":   payload,
			},
		}))
	}
	// Exec reports the first failed command; inspect each instead.
	_, _ = pipe.Exec(ctx)
	for i, cmd := range cmds {
		if err := cmd.Err(); err != nil && !isStaleID(err) {
			return fmt.Errorf("xadd event %d: %w", events[i].Seq, err)
		}
	}
	return nil
}

// StreamID is the stream entry ID used for seq.
func StreamID(seq uint64) string {
	return strconv.FormatUint(seq, 10) + "-0"
}

func isStaleID(err error) bool {
	return strings.Contains(err.Error(), "equal or smaller than the target stream top item")
}
