package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeexec/engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "codeexec:queue:dedup:"
	dedupTTL       = 24 * time.Hour

	delayedSetKey = "codeexec:queue:delayed"
	deadListKey   = "codeexec:queue:dead"
)

// RedisQueue implements Queue on top of Redis Streams using a
// consumer group (XADD/XREADGROUP/XACK/XAUTOCLAIM), with a sorted-set
// backoff scheduler and a dead list layered on top for the retry and
// dead-letter semantics a reliable queue needs.
type RedisQueue struct {
	client *redis.Client
	stream string
	group  string
}

var _ Queue = (*RedisQueue)(nil)

// New returns a Redis Streams-backed queue. The consumer group is
// created lazily on the first Enqueue or Reserve call.
func New(client *redis.Client, stream, group string) *RedisQueue {
	return &RedisQueue{client: client, stream: stream, group: group}
}

type delayedEntry struct {
	JobID        string            `json:"job_id"`
	Payload      domain.JobPayload `json:"payload"`
	AttemptsMade int               `json:"attempts_made"`
	Attempts     int               `json:"attempts"`
	BackoffMs    int               `json:"backoff_ms"`
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("queue: create consumer group: %w", err)
	}
	return nil
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string, payload domain.JobPayload, opts EnqueueOptions) error {
	opts = opts.WithDefaults()

	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	ok, err := q.client.SetNX(ctx, dedupKeyPrefix+jobID, "1", dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("queue: dedup check: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}

	return q.publish(ctx, jobID, payload, 0, opts)
}

func (q *RedisQueue) publish(ctx context.Context, jobID string, payload domain.JobPayload, attemptsMade int, opts EnqueueOptions) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}

	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"job_id":             jobID,
			"payload":            data,
			"attempts_made":      attemptsMade,
			"attempts":           opts.Attempts,
			"backoff_initial_ms": opts.BackoffInitialMs,
		},
	}).Err()
}

// Reserve implements Queue.
func (q *RedisQueue) Reserve(ctx context.Context, workerID string) (*Job, error) {
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: workerID,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("queue: reserve: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			return q.decodeMessage(msg)
		}
	}
	return nil, nil
}

func (q *RedisQueue) decodeMessage(msg redis.XMessage) (*Job, error) {
	jobID, _ := msg.Values["job_id"].(string)
	raw, _ := msg.Values["payload"].(string)

	var payload domain.JobPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("queue: decode payload for %s: %w", msg.ID, err)
	}

	attemptsMade := atoiField(msg.Values["attempts_made"])
	attempts := atoiField(msg.Values["attempts"])
	backoffMs := atoiField(msg.Values["backoff_initial_ms"])
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	if backoffMs == 0 {
		backoffMs = DefaultBackoffInitialMs
	}

	return &Job{
		ID:           jobID,
		Payload:      payload,
		AttemptsMade: attemptsMade,
		Options:      EnqueueOptions{Attempts: attempts, BackoffInitialMs: backoffMs},
		rawID:        msg.ID,
	}, nil
}

func atoiField(v interface{}) int {
	s, _ := v.(string)
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// Ack implements Queue.
func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	return q.client.XAck(ctx, q.stream, q.group, job.rawID).Err()
}

// Nack implements Queue: removes the in-flight message from the
// pending entries list and either schedules a delayed retry or moves
// the job to dead retention.
func (q *RedisQueue) Nack(ctx context.Context, job *Job, cause error) error {
	if err := q.client.XAck(ctx, q.stream, q.group, job.rawID).Err(); err != nil {
		return fmt.Errorf("queue: ack before nack: %w", err)
	}
	return q.requeueOrKill(ctx, job, cause)
}

// requeueOrKill applies the backoff-or-dead-letter decision for a job
// whose delivery has already been acked off the stream (either via an
// explicit Nack or because the visibility-timeout reclaimer picked it
// up after a worker crash).
func (q *RedisQueue) requeueOrKill(ctx context.Context, job *Job, cause error) error {
	attemptsMade := job.AttemptsMade + 1
	if attemptsMade >= job.Options.Attempts {
		return q.moveToDead(ctx, job, cause)
	}

	delayMs := job.Options.BackoffInitialMs << job.AttemptsMade
	dueAt := time.Now().Add(time.Duration(delayMs) * time.Millisecond)

	entry := delayedEntry{
		JobID:        job.ID,
		Payload:      job.Payload,
		AttemptsMade: attemptsMade,
		Attempts:     job.Options.Attempts,
		BackoffMs:    job.Options.BackoffInitialMs,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("queue: marshal delayed entry: %w", err)
	}

	return q.client.ZAdd(ctx, delayedSetKey, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: data,
	}).Err()
}

func (q *RedisQueue) moveToDead(ctx context.Context, job *Job, cause error) error {
	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}
	record := struct {
		JobID     string            `json:"job_id"`
		Payload   domain.JobPayload `json:"payload"`
		Attempts  int               `json:"attempts_made"`
		LastError string            `json:"last_error"`
		DeadAt    string            `json:"dead_at"`
	}{
		JobID:     job.ID,
		Payload:   job.Payload,
		Attempts:  job.AttemptsMade + 1,
		LastError: causeMsg,
		DeadAt:    time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("queue: marshal dead record: %w", err)
	}
	slog.Warn("job moved to dead retention", "jobID", job.ID, "attempts", record.Attempts, "cause", causeMsg)
	return q.client.LPush(ctx, deadListKey, data).Err()
}

// mover polls the delayed set and re-publishes due jobs onto the
// stream. It is started by StartRecovery alongside the PEL reclaimer.
func (q *RedisQueue) mover(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := float64(time.Now().UnixMilli())
			due, err := q.client.ZRangeByScore(ctx, delayedSetKey, &redis.ZRangeBy{
				Min: "-inf",
				Max: fmt.Sprintf("%f", now),
			}).Result()
			if err != nil {
				slog.Error("queue: mover scan failed", "error", err)
				continue
			}
			for _, raw := range due {
				var entry delayedEntry
				if err := json.Unmarshal([]byte(raw), &entry); err != nil {
					_, _ = q.client.ZRem(ctx, delayedSetKey, raw).Result()
					continue
				}
				opts := EnqueueOptions{Attempts: entry.Attempts, BackoffInitialMs: entry.BackoffMs}
				if err := q.publish(ctx, entry.JobID, entry.Payload, entry.AttemptsMade, opts); err != nil {
					slog.Error("queue: mover republish failed", "jobID", entry.JobID, "error", err)
					continue
				}
				_, _ = q.client.ZRem(ctx, delayedSetKey, raw).Result()
			}
		}
	}
}
