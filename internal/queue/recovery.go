package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// errWorkerLost is the Nack cause recorded against jobs reclaimed after
// their reserving worker went silent past the visibility timeout.
var errWorkerLost = errors.New("worker lost before ack")

const recoveryConsumer = "recovery-agent"

// StartRecovery implements Queue: it reclaims pending entries stuck
// past the visibility timeout via XAUTOCLAIM, and runs the delayed-job
// mover that realizes Nack's backoff schedule.
func (q *RedisQueue) StartRecovery(ctx context.Context, interval, maxAge time.Duration) {
	go q.mover(ctx, interval)
	go q.reclaim(ctx, interval, maxAge)
}

func (q *RedisQueue) reclaim(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("starting queue visibility-timeout reclaimer", "interval", interval, "maxAge", maxAge)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.reclaimOnce(ctx, maxAge)
		}
	}
}

// reclaimOnce claims stale pending messages for the recovery consumer,
// acks them, and routes each through requeueOrKill, the same path an
// explicit Nack takes: a crashed worker's job is retried after backoff
// (once the mover republishes it) or moved to dead retention.
// Idempotent completion on execution id makes the retry safe.
func (q *RedisQueue) reclaimOnce(ctx context.Context, maxAge time.Duration) {
	start := "-"
	for {
		messages, nextStart, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			MinIdle:  maxAge,
			Start:    start,
			Count:    10,
			Consumer: recoveryConsumer,
		}).Result()
		if err != nil {
			slog.Error("queue: reclaim failed", "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		slog.Warn("reclaimed stale jobs past visibility timeout", "count", len(messages))

		for _, msg := range messages {
			job, err := q.decodeMessage(msg)
			if err != nil {
				slog.Error("queue: failed to decode reclaimed message", "msgID", msg.ID, "error", err)
				_, _ = q.client.XAck(ctx, q.stream, q.group, msg.ID).Result()
				continue
			}
			if err := q.client.XAck(ctx, q.stream, q.group, msg.ID).Err(); err != nil {
				slog.Error("queue: failed to ack reclaimed message", "msgID", msg.ID, "error", err)
				continue
			}
			if err := q.requeueOrKill(ctx, job, errWorkerLost); err != nil {
				slog.Error("queue: failed to requeue reclaimed job", "jobID", job.ID, "error", err)
			}
		}

		start = nextStart
		if start == "0-0" {
			return
		}
	}
}
