// Package queue implements a reliable job queue: enqueue with
// jobId-based dedup, reserve/ack/nack with bounded retries and
// exponential backoff, and a bounded visibility timeout so a crashed
// worker cannot orphan a job forever.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/codeexec/engine/internal/domain"
)

// ErrDuplicateJob is returned by Enqueue when jobId already exists in
// the queue — the dedup guarantee so that
// re-submitting the same execution id is a no-op at the queue layer.
var ErrDuplicateJob = errors.New("queue: duplicate job id")

// Defaults: attempts=3, backoffInitialMs=2000. Attempts counts every
// delivery, so the defaults give two retries, after 2s and then 4s; the
// third failed delivery moves the job to dead retention with no 8s retry.
const (
	DefaultAttempts         = 3
	DefaultBackoffInitialMs = 2000
)

// EnqueueOptions configures retry behavior for one job.
type EnqueueOptions struct {
	Attempts         int
	BackoffInitialMs int
}

// WithDefaults fills zero fields with the package defaults.
func (o EnqueueOptions) WithDefaults() EnqueueOptions {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.BackoffInitialMs <= 0 {
		o.BackoffInitialMs = DefaultBackoffInitialMs
	}
	return o
}

// Job is a reserved unit of work together with the bookkeeping needed
// to ack or nack it.
type Job struct {
	ID           string
	Payload      domain.JobPayload
	AttemptsMade int
	Options      EnqueueOptions

	rawID string // backing-store message id, opaque to callers
}

// Queue is the abstract contract any conformant broker adapter
// satisfies. The pipeline depends on this interface, never on the
// concrete Redis Streams implementation, so admission and the worker
// pool can be tested against a fake.
type Queue interface {
	// Enqueue admits a new job. Returns ErrDuplicateJob if jobID is
	// already present (ready, reserved, delayed, or dead).
	Enqueue(ctx context.Context, jobID string, payload domain.JobPayload, opts EnqueueOptions) error

	// Reserve blocks (bounded) until a job is available or ctx is
	// done, returning (nil, nil) on a plain timeout with no job ready.
	Reserve(ctx context.Context, workerID string) (*Job, error)

	// Ack removes a job permanently; call after successful or
	// deterministic terminal processing.
	Ack(ctx context.Context, job *Job) error

	// Nack reschedules a job after backoff, or moves it to dead
	// retention once attempts are exhausted.
	Nack(ctx context.Context, job *Job, cause error) error

	// StartRecovery runs the visibility-timeout reclaim loop and the
	// delayed-job mover until ctx is done. It is safe to call from
	// exactly one process at a time per queue; calling it from more is
	// harmless (XAUTOCLAIM is idempotent) but redundant.
	StartRecovery(ctx context.Context, interval, maxAge time.Duration)
}
