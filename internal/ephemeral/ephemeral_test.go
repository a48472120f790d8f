package ephemeral

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/codeexec/engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// openTestStore connects to a real Redis instance for integration
// testing. Set TEST_REDIS_ADDR to run these; otherwise they skip, the
// same posture internal/store takes toward its Postgres dependency.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping ephemeral integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to reach test redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestAppendEvent_ThenEvents_RoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	execID := "evt-roundtrip-1"

	ev := domain.LifecycleEvent{
		ExecutionID: execID,
		Stage:       domain.ExecutionRunning,
		Timestamp:   time.Now(),
		Metadata:    map[string]string{"worker": "w1"},
	}
	if err := store.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := store.Events(ctx, execID)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Stage != domain.ExecutionRunning {
		t.Errorf("got stage %s, want RUNNING", events[0].Stage)
	}
	if events[0].Metadata["worker"] != "w1" {
		t.Errorf("got metadata %v, want worker=w1", events[0].Metadata)
	}
}

func TestAppendEvent_PreservesAppendOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	execID := "evt-order-1"

	stages := []domain.ExecutionStatus{domain.ExecutionQueued, domain.ExecutionRunning, domain.ExecutionCompleted}
	for _, stage := range stages {
		ev := domain.LifecycleEvent{ExecutionID: execID, Stage: stage, Timestamp: time.Now()}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	events, err := store.Events(ctx, execID)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != len(stages) {
		t.Fatalf("got %d events, want %d", len(events), len(stages))
	}
	for i, stage := range stages {
		if events[i].Stage != stage {
			t.Errorf("event %d: got stage %s, want %s", i, events[i].Stage, stage)
		}
	}
}

func TestEvents_UnknownExecutionReturnsEmptyNotError(t *testing.T) {
	store := openTestStore(t)
	events, err := store.Events(context.Background(), "evt-never-written")
	if err != nil {
		t.Fatalf("expected no error for an unknown execution, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	execID := "evt-subscribe-1"

	sub := store.Subscribe(ctx, execID)
	defer sub.Close()
	// Give the subscription a moment to register before publishing.
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe confirmation: %v", err)
	}

	go func() {
		_ = store.AppendEvent(ctx, domain.LifecycleEvent{
			ExecutionID: execID,
			Stage:       domain.ExecutionCompleted,
			Timestamp:   time.Now(),
		})
	}()

	select {
	case msg := <-sub.Channel():
		if msg == nil {
			t.Fatal("expected a non-nil published message")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}
