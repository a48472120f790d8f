package store

import (
	"context"
	"fmt"
	"time"

	"github.com/codeexec/engine/internal/domain"
	"github.com/jackc/pgx/v5"
)

const executionColumns = `id, session_id, status, stdout, stderr, execution_time_ms, exit_code, timeout,
	created_at, started_at, finished_at`

func scanExecution(row pgx.Row) (domain.Execution, error) {
	var e domain.Execution
	var status string
	err := row.Scan(&e.ID, &e.SessionID, &status, &e.Stdout, &e.Stderr, &e.ExecutionTimeMs, &e.ExitCode,
		&e.Timeout, &e.CreatedAt, &e.StartedAt, &e.FinishedAt)
	e.Status = domain.ExecutionStatus(status)
	return e, err
}

// CreateQueued inserts a new execution row with status QUEUED. Called
// by admission strictly before the job is enqueued.
func (s *Store) CreateQueued(ctx context.Context, id, sessionID string) (domain.Execution, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO executions (id, session_id, status)
		VALUES ($1, $2, 'QUEUED')
		RETURNING `+executionColumns,
		id, sessionID,
	)
	e, err := scanExecution(row)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("store: create execution: %w", err)
	}
	return e, nil
}

// Execution returns one execution row by id.
func (s *Store) Execution(ctx context.Context, id string) (domain.Execution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	e, err := scanExecution(row)
	if err != nil {
		return domain.Execution{}, err
	}
	return e, nil
}

// ExecutionsBySession returns the most recent executions for a
// session, newest first, bounded by limit.
func (s *Store) ExecutionsBySession(ctx context.Context, sessionID string, limit int) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list executions: %w", err)
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkFailed writes a terminal FAILED row directly, used by admission
// when enqueue fails after the row was already inserted, and by the
// worker's deterministic-failure branch. It is idempotent: rows
// already terminal are left untouched.
func (s *Store) MarkFailed(ctx context.Context, id, stderr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE executions
		SET status = 'FAILED', stderr = $2, finished_at = now()
		WHERE id = $1 AND status IN ('QUEUED', 'RUNNING')`,
		id, stderr,
	)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	return nil
}

// TransitionToRunning performs the conditional QUEUED->RUNNING update
// that guards against a double-dequeue race: it only succeeds if the
// row currently exists in QUEUED, which is the single real race
// protection against two workers dequeuing the same job. rowsAffected
// == 0 means either the row is missing (admission bug) or another
// worker already claimed it.
func (s *Store) TransitionToRunning(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE executions
		SET status = 'RUNNING', started_at = now()
		WHERE id = $1 AND status = 'QUEUED'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("store: transition to running: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyOutcome writes the worker's single terminal update for an
// execution. Terminal rows are immutable, so this only applies when
// the row is still RUNNING.
func (s *Store) ApplyOutcome(ctx context.Context, id string, outcome domain.RunnerOutcome) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE executions
		SET status = $2, stdout = $3, stderr = $4, execution_time_ms = $5, exit_code = $6,
		    timeout = $7, finished_at = now()
		WHERE id = $1 AND status = 'RUNNING'`,
		id, string(outcome.Status), outcome.Stdout, outcome.Stderr, outcome.ExecutionTimeMs,
		outcome.ExitCode, outcome.Timeout,
	)
	if err != nil {
		return fmt.Errorf("store: apply outcome: %w", err)
	}
	return nil
}

// RecentExecutionCounts implements the abuse-check query: the number
// of executions for sessionID created within the last window, and how
// many of those are FAILED.
func (s *Store) RecentExecutionCounts(ctx context.Context, sessionID string, window time.Duration) (total, failed int, err error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'FAILED')
		FROM executions
		WHERE session_id = $1 AND created_at > now() - $2::interval`,
		sessionID, fmt.Sprintf("%d milliseconds", window.Milliseconds()),
	)
	if err := row.Scan(&total, &failed); err != nil {
		return 0, 0, fmt.Errorf("store: recent execution counts: %w", err)
	}
	return total, failed, nil
}

// StuckRunning returns executions whose RUNNING state has outlived
// maxAge — candidates for the repair sweep.
func (s *Store) StuckRunning(ctx context.Context, maxAge time.Duration) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE status = 'RUNNING' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d milliseconds", maxAge.Milliseconds()),
	)
	if err != nil {
		return nil, fmt.Errorf("store: stuck running: %w", err)
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan stuck execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
