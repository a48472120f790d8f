// Package repair implements a periodic sweep for executions stuck in
// RUNNING: a worker crash between the RUNNING write and the terminal
// write would otherwise leave a row stuck forever.
package repair

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeexec/engine/internal/domain"
)

// margin is added on top of the execution's own time limit before a
// RUNNING row is considered abandoned, to tolerate normal scheduling
// jitter and the worker's own write latency.
const margin = 30 * time.Second

// Store is the subset of *store.Store the sweep depends on.
type Store interface {
	StuckRunning(ctx context.Context, maxAge time.Duration) ([]domain.Execution, error)
	MarkFailed(ctx context.Context, id, stderr string) error
}

// Sweeper periodically relabels executions that have been RUNNING far
// longer than any legal time limit allows.
type Sweeper struct {
	store       Store
	maxTimeLimit time.Duration
}

// New constructs a Sweeper. maxTimeLimit should be the upper bound on
// any execution's time limit (60000ms); the sweep adds
// margin on top of it before considering a row abandoned.
func New(store Store, maxTimeLimit time.Duration) *Sweeper {
	return &Sweeper{store: store, maxTimeLimit: maxTimeLimit}
}

// Run ticks every interval until ctx is done, sweeping stuck rows on
// each tick.
func (sw *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.sweepOnce(ctx)
		}
	}
}

func (sw *Sweeper) sweepOnce(ctx context.Context) {
	stuck, err := sw.store.StuckRunning(ctx, sw.maxTimeLimit+margin)
	if err != nil {
		slog.Error("repair: sweep query failed", "error", err)
		return
	}
	for _, e := range stuck {
		if err := sw.store.MarkFailed(ctx, e.ID, "worker lost"); err != nil {
			slog.Error("repair: mark failed errored", "execution_id", e.ID, "error", err)
			continue
		}
		slog.Warn("repair: relabeled stuck execution as FAILED", "execution_id", e.ID)
	}
}
