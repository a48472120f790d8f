// Package ephemeral implements the TTL'd lifecycle event log and its
// live Pub/Sub feed on Redis. The job queue's delayed and dead sets live
// on the same Redis but are written by internal/queue directly. Nothing
// written here is authoritative; the durable store in internal/store
// owns terminal truth.
package ephemeral

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeexec/engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// eventsTTL: lifecycle events expire 30 minutes
// after the last write to their key.
const eventsTTL = 30 * time.Minute

// Store wraps a Redis client with the lifecycle-event and generic
// TTL-keyed operations the pipeline needs outside the job queue itself.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client. The queue package owns the same
// client for its stream operations; they share one connection pool.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func eventsKey(executionID string) string {
	return fmt.Sprintf("execution:%s:events", executionID)
}

func channelKey(executionID string) string {
	return fmt.Sprintf("execution:%s:channel", executionID)
}

// AppendEvent appends one lifecycle event to the execution's event
// list, refreshes its TTL, and publishes the same event to the
// execution's channel for live subscribers. The publish is
// best-effort UX only: a subscriber that misses it can still read the
// full history back from the list.
func (s *Store) AppendEvent(ctx context.Context, ev domain.LifecycleEvent) error {
	data, err := json.Marshal(struct {
		Stage     string            `json:"stage"`
		Timestamp string            `json:"timestamp"`
		Metadata  map[string]string `json:"metadata,omitempty"`
	}{
		Stage:     string(ev.Stage),
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Metadata:  ev.Metadata,
	})
	if err != nil {
		return fmt.Errorf("ephemeral: marshal event: %w", err)
	}

	key := eventsKey(ev.ExecutionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, eventsTTL)
	pipe.Publish(ctx, channelKey(ev.ExecutionID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ephemeral: append event: %w", err)
	}
	return nil
}

// Subscribe returns a Redis PubSub subscribed to live lifecycle events
// for one execution. Callers must Close it when done.
func (s *Store) Subscribe(ctx context.Context, executionID string) *redis.PubSub {
	return s.client.Subscribe(ctx, channelKey(executionID))
}

// Events returns the append-ordered lifecycle events recorded for an
// execution. Lossy by design: an expired key returns an empty slice,
// not an error.
func (s *Store) Events(ctx context.Context, executionID string) ([]domain.LifecycleEvent, error) {
	raws, err := s.client.LRange(ctx, eventsKey(executionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ephemeral: read events: %w", err)
	}

	events := make([]domain.LifecycleEvent, 0, len(raws))
	for _, raw := range raws {
		var decoded struct {
			Stage     string            `json:"stage"`
			Timestamp string            `json:"timestamp"`
			Metadata  map[string]string `json:"metadata,omitempty"`
		}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			continue // skip malformed entries rather than fail the whole read
		}
		ts, _ := time.Parse(time.RFC3339, decoded.Timestamp)
		events = append(events, domain.LifecycleEvent{
			ExecutionID: executionID,
			Stage:       domain.ExecutionStatus(decoded.Stage),
			Timestamp:   ts,
			Metadata:    decoded.Metadata,
		})
	}
	return events, nil
}
