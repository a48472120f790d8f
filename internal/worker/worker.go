// Package worker implements the bounded-concurrency execution worker
// pool: reserve a job, transition the row to RUNNING, invoke the
// Runner, persist the outcome, and ack.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeexec/engine/internal/domain"
	"github.com/codeexec/engine/internal/queue"
	"golang.org/x/sync/semaphore"
)

// ErrSessionGone is the deterministic failure raised when a reserved
// job's session no longer exists.
var ErrSessionGone = errors.New("worker: session gone")

// Store is the subset of *store.Store the worker depends on.
type Store interface {
	Session(ctx context.Context, id string) (domain.Session, error)
	Language(ctx context.Context, id string) (domain.Language, error)
	TransitionToRunning(ctx context.Context, id string) (bool, error)
	ApplyOutcome(ctx context.Context, id string, outcome domain.RunnerOutcome) error
	MarkFailed(ctx context.Context, id, stderr string) error
}

// Runner is the subset of *runner.Runner the worker depends on.
type Runner interface {
	Run(ctx context.Context, runtimeKey, source string, timeLimitMs, memoryLimitMB int) domain.RunnerOutcome
}

// EventAppender is the subset of *ephemeral.Store the worker depends on.
type EventAppender interface {
	AppendEvent(ctx context.Context, ev domain.LifecycleEvent) error
}

// Pool is a bounded-concurrency worker pool. Default concurrency is
// 10, matching MAX_CONCURRENT_EXECUTIONS.
type Pool struct {
	id     string
	store  Store
	queue  queue.Queue
	runner Runner
	events EventAppender
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// New constructs a worker pool identified by id (used as the queue
// consumer name), with the given maximum concurrency.
func New(id string, store Store, q queue.Queue, r Runner, events EventAppender, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Pool{
		id:     id,
		store:  store,
		queue:  q,
		runner: r,
		events: events,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run reserves and processes jobs until ctx is cancelled, then waits
// for in-flight jobs to return. In-flight jobs run under the same ctx,
// so cancelling it also kills their running processes and aborts their
// store writes; there is no separate grace period for them to finish.
func (p *Pool) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.wg.Wait()
			return
		}

		job, err := p.queue.Reserve(ctx, p.id)
		if err != nil {
			if ctx.Err() != nil {
				p.wg.Wait()
				return
			}
			slog.Error("worker: reserve failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue // plain timeout, no job ready
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.wg.Wait()
			return
		}
		p.wg.Add(1)
		go func(j *queue.Job) {
			defer p.wg.Done()
			defer p.sem.Release(1)
			p.process(ctx, j)
		}(job)
	}
}

// process runs one reserved job from claim to terminal write and ack.
func (p *Pool) process(ctx context.Context, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker: panic during job processing, nacking", "execution_id", job.Payload.ExecutionID, "panic", r)
			_ = p.queue.Nack(ctx, job, fmt.Errorf("worker: panic: %v", r))
		}
	}()

	payload := job.Payload
	executionID := payload.ExecutionID

	// Step 2: conditional QUEUED->RUNNING transition.
	ok, err := p.store.TransitionToRunning(ctx, executionID)
	if err != nil {
		slog.Error("worker: transition to running failed", "execution_id", executionID, "error", err)
		_ = p.queue.Nack(ctx, job, err)
		return
	}
	if !ok {
		slog.Warn("worker: execution row missing or already claimed, acking", "execution_id", executionID)
		_ = p.queue.Ack(ctx, job)
		return
	}

	// Step 3: load session, joined with language descriptor.
	session, err := p.store.Session(ctx, payload.SessionID)
	if err != nil {
		slog.Warn("worker: session gone, writing terminal FAILED", "execution_id", executionID, "session_id", payload.SessionID)
		if markErr := p.store.MarkFailed(ctx, executionID, ErrSessionGone.Error()); markErr != nil {
			slog.Error("worker: mark failed errored", "execution_id", executionID, "error", markErr)
		}
		p.appendTerminalEvent(ctx, executionID, domain.ExecutionFailed)
		_ = p.queue.Ack(ctx, job)
		return
	}

	language, err := p.store.Language(ctx, session.LanguageID)
	if err != nil {
		slog.Warn("worker: language gone, writing terminal FAILED", "execution_id", executionID, "language_id", session.LanguageID)
		if markErr := p.store.MarkFailed(ctx, executionID, fmt.Sprintf("worker: language %s gone", session.LanguageID)); markErr != nil {
			slog.Error("worker: mark failed errored", "execution_id", executionID, "error", markErr)
		}
		p.appendTerminalEvent(ctx, executionID, domain.ExecutionFailed)
		_ = p.queue.Ack(ctx, job)
		return
	}

	// Step 4: invoke the Runner.
	outcome := p.runner.Run(ctx, language.RuntimeKey, session.SourceCode, payload.TimeLimitMs, payload.MemoryLimitMB)

	// Step 5: apply outcome in a single write. If this is the job's last
	// attempt, also try a direct MarkFailed so the row does not wait on
	// the repair sweep to leave RUNNING.
	if err := p.store.ApplyOutcome(ctx, executionID, outcome); err != nil {
		slog.Error("worker: apply outcome failed", "execution_id", executionID, "error", err)
		if job.AttemptsMade+1 >= job.Options.Attempts {
			if markErr := p.store.MarkFailed(ctx, executionID, err.Error()); markErr != nil {
				slog.Error("worker: final mark failed attempt errored", "execution_id", executionID, "error", markErr)
			}
		}
		_ = p.queue.Nack(ctx, job, err)
		return
	}

	// Step 6: append terminal lifecycle event.
	p.appendTerminalEvent(ctx, executionID, outcome.Status)

	// Step 7: ack. Code-level outcomes (compile error, runtime error,
	// timeout) are deterministic and never retried regardless of
	// AttemptsMade — retry is reserved for infra failures above.
	if err := p.queue.Ack(ctx, job); err != nil {
		slog.Error("worker: ack failed", "execution_id", executionID, "error", err)
	}
}

func (p *Pool) appendTerminalEvent(ctx context.Context, executionID string, status domain.ExecutionStatus) {
	if err := p.events.AppendEvent(ctx, domain.LifecycleEvent{
		ExecutionID: executionID,
		Stage:       status,
		Timestamp:   time.Now(),
	}); err != nil {
		slog.Warn("worker: append terminal event failed", "execution_id", executionID, "error", err)
	}
}
