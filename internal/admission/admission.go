// Package admission implements submit: the single entry point that
// turns a session and a resource request into a durable, queued
// execution. The ordering of its checks is load-bearing — cheaper
// checks run first so a bad request gets the cheapest possible
// rejection.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeexec/engine/internal/apierr"
	"github.com/codeexec/engine/internal/domain"
	"github.com/codeexec/engine/internal/queue"
	"github.com/codeexec/engine/internal/safety"
	"github.com/google/uuid"
)

// Store is the subset of *store.Store admission depends on.
type Store interface {
	safety.AbuseChecker
	Session(ctx context.Context, id string) (domain.Session, error)
	CreateQueued(ctx context.Context, id, sessionID string) (domain.Execution, error)
	MarkFailed(ctx context.Context, id, stderr string) error
}

// EventAppender is the subset of *ephemeral.Store admission depends on.
type EventAppender interface {
	AppendEvent(ctx context.Context, ev domain.LifecycleEvent) error
}

// Admitter wires the store, queue, and ephemeral event log together to
// implement submit.
type Admitter struct {
	store  Store
	queue  queue.Queue
	events EventAppender
}

// New constructs an Admitter.
func New(store Store, q queue.Queue, events EventAppender) *Admitter {
	return &Admitter{store: store, queue: q, events: events}
}

// Submit validates parameters, checks abuse, loads the session, scans
// the source for loop patterns, then creates and enqueues the job in
// the fixed order below.
func (a *Admitter) Submit(ctx context.Context, sessionID string, sourceCode string, runtimeKey string, timeLimitMs, memoryLimitMB int) (domain.Execution, error) {
	// Step 1: validateParams.
	if violations := safety.ValidateParams(timeLimitMs, memoryLimitMB); len(violations) > 0 {
		return domain.Execution{}, apierr.NewInvalidParameter(violations)
	}

	// Step 2: checkAbuse.
	if blocked, err := safety.CheckAbuse(ctx, a.store, sessionID); err != nil {
		slog.Warn("abuse check failed, failing open", "session_id", sessionID, "error", err)
	} else if blocked != nil {
		return domain.Execution{}, blocked
	}

	// Step 3: fetch session.
	session, err := a.store.Session(ctx, sessionID)
	if err != nil {
		return domain.Execution{}, apierr.New(apierr.SessionNotFound, fmt.Sprintf("session %s not found", sessionID))
	}
	if session.Status != domain.SessionActive {
		return domain.Execution{}, apierr.New(apierr.SessionClosed, fmt.Sprintf("session %s is closed", sessionID))
	}

	// Step 4: scanLoopPatterns, advisory only.
	if hits := safety.ScanLoopPatterns(sourceCode, runtimeKey); len(hits) > 0 {
		slog.Info("loop pattern scan flagged source", "session_id", sessionID, "patterns", hits)
	}

	// Step 5: generate executionId.
	executionID := uuid.NewString()

	// Step 6: insert execution row. Must succeed before enqueue.
	execution, err := a.store.CreateQueued(ctx, executionID, sessionID)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("admission: create execution row: %w", err)
	}

	// Step 7: append QUEUED lifecycle event.
	_ = a.events.AppendEvent(ctx, domain.LifecycleEvent{
		ExecutionID: executionID,
		Stage:       domain.ExecutionQueued,
		Timestamp:   time.Now(),
		Metadata: map[string]string{
			"session_id":      sessionID,
			"time_limit_ms":   fmt.Sprint(timeLimitMs),
			"memory_limit_mb": fmt.Sprint(memoryLimitMB),
		},
	})

	// Step 8: enqueue job with jobId == executionId.
	payload := domain.JobPayload{
		ExecutionID:   executionID,
		SessionID:     sessionID,
		TimeLimitMs:   timeLimitMs,
		MemoryLimitMB: memoryLimitMB,
	}
	if err := a.queue.Enqueue(ctx, executionID, payload, queue.EnqueueOptions{}.WithDefaults()); err != nil {
		if markErr := a.store.MarkFailed(ctx, executionID, err.Error()); markErr != nil {
			slog.Error("admission: failed to mark row FAILED after enqueue failure",
				"execution_id", executionID, "enqueue_error", err, "mark_failed_error", markErr)
		}
		return domain.Execution{}, fmt.Errorf("admission: enqueue: %w", err)
	}

	return execution, nil
}
