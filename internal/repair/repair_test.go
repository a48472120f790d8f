package repair

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeexec/engine/internal/domain"
)

type fakeStore struct {
	stuck      []domain.Execution
	stuckErr   error
	markFailed []string
	markErr    error

	lastMaxAge time.Duration
}

func (f *fakeStore) StuckRunning(ctx context.Context, maxAge time.Duration) ([]domain.Execution, error) {
	f.lastMaxAge = maxAge
	return f.stuck, f.stuckErr
}

func (f *fakeStore) MarkFailed(ctx context.Context, id, stderr string) error {
	f.markFailed = append(f.markFailed, id)
	return f.markErr
}

func TestSweepOnce_MarksEveryStuckRowFailed(t *testing.T) {
	store := &fakeStore{stuck: []domain.Execution{{ID: "e1"}, {ID: "e2"}}}
	sw := New(store, 60*time.Second)

	sw.sweepOnce(context.Background())

	if len(store.markFailed) != 2 {
		t.Fatalf("expected 2 rows marked failed, got %d", len(store.markFailed))
	}
}

func TestSweepOnce_AppliesMarginOnTopOfMaxTimeLimit(t *testing.T) {
	store := &fakeStore{}
	sw := New(store, 60*time.Second)

	sw.sweepOnce(context.Background())

	want := 60*time.Second + margin
	if store.lastMaxAge != want {
		t.Fatalf("got maxAge %v, want %v", store.lastMaxAge, want)
	}
}

func TestSweepOnce_QueryErrorSkipsWithoutPanicking(t *testing.T) {
	store := &fakeStore{stuckErr: errors.New("db unavailable")}
	sw := New(store, 60*time.Second)

	sw.sweepOnce(context.Background())

	if len(store.markFailed) != 0 {
		t.Fatal("expected no rows marked on query error")
	}
}

func TestSweepOnce_ContinuesPastIndividualMarkFailedErrors(t *testing.T) {
	store := &fakeStore{
		stuck:   []domain.Execution{{ID: "e1"}, {ID: "e2"}},
		markErr: errors.New("write conflict"),
	}
	sw := New(store, 60*time.Second)

	sw.sweepOnce(context.Background())

	if len(store.markFailed) != 2 {
		t.Fatalf("expected both rows attempted despite errors, got %d", len(store.markFailed))
	}
}

func TestRun_StopsOnContextCancellation(t *testing.T) {
	store := &fakeStore{}
	sw := New(store, 60*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}
