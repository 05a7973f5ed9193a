//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RegistryStream is the stream the redis event sink writes to in tests.
const RegistryStream = "registry-events"

// RedisContainer holds the shared Redis instance backing the event sink.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts a Redis instance. Callers should go
// through GetManager().GetRedis so suites share one instance.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("parse redis url %q: %v", url, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = container.Terminate(context.Background())
		t.Fatalf("ping redis: %v", err)
	}

	return &RedisContainer{Container: container, URL: url, Client: client}
}

// ResetStreams deletes the given streams, defaulting to RegistryStream. Other
// keys are left alone so suites sharing the instance do not clobber each
// other.
func (r *RedisContainer) ResetStreams(ctx context.Context, streams ...string) error {
	if len(streams) == 0 {
		streams = []string{RegistryStream}
	}
	if err := r.Client.Del(ctx, streams...).Err(); err != nil {
		return fmt.Errorf("reset streams %v: %w", streams, err)
	}
	return nil
}

// StreamIDs returns the entry IDs of stream in order.
func (r *RedisContainer) StreamIDs(ctx context.Context, stream string) ([]string, error) {
	entries, err := r.Client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", stream, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids, nil
}
