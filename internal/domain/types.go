// Package domain holds the types shared across the execution pipeline:
// the runtime catalogue, sessions, executions, lifecycle events, and the
// job payload that travels through the queue. No package in internal/
// should redeclare these; they are the vocabulary every layer speaks.
package domain

import "time"

// SessionStatus is the lifecycle state of an editing session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "ACTIVE"
	SessionInactive SessionStatus = "INACTIVE"
)

// ExecutionStatus is the lifecycle state of one run attempt.
// Transitions form a DAG: QUEUED -> RUNNING -> {COMPLETED, FAILED, TIMEOUT},
// with QUEUED -> FAILED permitted when admission or worker setup fails
// before RUNNING ever begins.
type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "QUEUED"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionTimeout   ExecutionStatus = "TIMEOUT"
)

// IsTerminal reports whether status is one from which no further
// transition is permitted.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionTimeout:
		return true
	default:
		return false
	}
}

// Language is an immutable descriptor for one supported runtime,
// seeded at install and never mutated at runtime.
type Language struct {
	ID                   string
	Name                 string
	RuntimeKey           string
	Version              string
	FileName             string
	CompileCmd           string // empty when the runtime needs no compile step
	RunCmd               string
	DefaultTimeLimitMs   int
	DefaultMemoryLimitMB int
	TemplateCode         string
}

// Session is a long-lived editing context bound to one language.
type Session struct {
	ID         string
	LanguageID string
	SourceCode string
	Status     SessionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Execution is one attempt to run a session's current source.
type Execution struct {
	ID              string
	SessionID       string
	Status          ExecutionStatus
	Stdout          *string
	Stderr          *string
	ExecutionTimeMs *float64
	ExitCode        *int
	Timeout         bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// LifecycleEvent is an informational breadcrumb recorded in the
// ephemeral store. It is lossy by design and never authoritative.
type LifecycleEvent struct {
	ExecutionID string
	Stage       ExecutionStatus
	Timestamp   time.Time
	Metadata    map[string]string
}

// JobPayload is the fixed, enumerated record carried by the job queue.
// It is serialized as JSON on the wire; no arbitrary maps.
type JobPayload struct {
	ExecutionID   string `json:"execution_id"`
	SessionID     string `json:"session_id"`
	TimeLimitMs   int    `json:"time_limit_ms"`
	MemoryLimitMB int    `json:"memory_limit_mb"`
}

// RunnerOutcome is the result of one Runner invocation.
type RunnerOutcome struct {
	Status          ExecutionStatus
	Stdout          string
	Stderr          string
	ExecutionTimeMs float64
	ExitCode        *int
	Timeout         bool
}
