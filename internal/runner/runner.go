// Package runner drives one execution attempt end to end: scratch
// directory, source write, optional compile, timed run, classification,
// cleanup. It is the language-agnostic child-process driver: no
// container runtime, no sandboxing beyond the OS process boundary and
// the bounds enforced here.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codeexec/engine/internal/catalogue"
	"github.com/codeexec/engine/internal/domain"
	"github.com/google/uuid"
)

// minCompileTimeout is the floor applied to the compile step's own
// timeout of max(timeLimitMs, 10_000ms), generous enough for slow toolchains.
const minCompileTimeout = 10 * time.Second

// Runner executes one submission's source under the runtime descriptor
// matching its language.
type Runner struct {
	catalogue *catalogue.Catalogue
	scratchRoot string
}

// New builds a Runner. scratchRoot overrides the OS temp root; pass ""
// to use os.TempDir().
func New(cat *catalogue.Catalogue, scratchRoot string) *Runner {
	return &Runner{catalogue: cat, scratchRoot: scratchRoot}
}

// Run executes source under the given runtime key, bounded by
// timeLimitMs wall clock and by memoryLimitMB of output per stream:
// stdout and stderr are each capped at memoryLimitMB on their own, so
// their combined output is not capped as a whole.
func (r *Runner) Run(ctx context.Context, runtimeKey, source string, timeLimitMs, memoryLimitMB int) domain.RunnerOutcome {
	desc, ok := r.catalogue.Get(runtimeKey)
	if !ok {
		return domain.RunnerOutcome{
			Status: domain.ExecutionFailed,
			Stderr: fmt.Sprintf("Unsupported language: %s", runtimeKey),
		}
	}

	scratch, err := r.newScratchDir()
	if err != nil {
		return domain.RunnerOutcome{Status: domain.ExecutionFailed, Stderr: fmt.Sprintf("failed to prepare scratch directory: %v", err)}
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			// Best-effort cleanup only; never propagated to the caller.
			_ = rmErr
		}
	}()

	srcPath := filepath.Join(scratch, desc.FileName)
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return domain.RunnerOutcome{Status: domain.ExecutionFailed, Stderr: fmt.Sprintf("failed to write source: %v", err)}
	}

	binPath := filepath.Join(scratch, "program")

	if desc.RequiresCompile() {
		outcome, ok := r.compile(ctx, desc, scratch, srcPath, binPath, timeLimitMs)
		if !ok {
			return outcome
		}
	}

	return r.run(ctx, desc, scratch, srcPath, binPath, timeLimitMs, memoryLimitMB)
}

func (r *Runner) newScratchDir() (string, error) {
	name := fmt.Sprintf("codeexec-%d-%s", time.Now().UnixNano(), uuid.NewString())
	root := r.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// compile runs the descriptor's compile command. The bool return is
// false when compilation failed outright (outcome is already the
// terminal FAILED result to return to the caller).
func (r *Runner) compile(ctx context.Context, desc catalogue.Descriptor, scratch, srcPath, binPath string, timeLimitMs int) (domain.RunnerOutcome, bool) {
	timeout := minCompileTimeout
	if d := time.Duration(timeLimitMs) * time.Millisecond; d > timeout {
		timeout = d
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdLine := substitute(desc.CompileCmdTemplate, srcPath, binPath, scratch)
	cmd := buildCommand(cctx, cmdLine, scratch)

	output, err := cmd.CombinedOutput()
	combined := string(output)

	exitedNonZero := false
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitedNonZero = true
		} else {
			// spawn error, e.g. compiler not found
			return domain.RunnerOutcome{
				Status: domain.ExecutionFailed,
				Stderr: fmt.Sprintf("failed to start compiler: %v", err),
			}, false
		}
	}

	if exitedNonZero || containsCompileErrorMarker(combined) {
		stderr := combined
		if stderr == "" {
			stderr = "compilation failed"
		}
		return domain.RunnerOutcome{
			Status:          domain.ExecutionFailed,
			Stdout:          "",
			Stderr:          stderr,
			ExecutionTimeMs: 0,
			ExitCode:        intPtr(1),
			Timeout:         false,
		}, false
	}

	return domain.RunnerOutcome{}, true
}

// containsCompileErrorMarker is a fallback heuristic: some toolchains
// exit 0 on failure, so a case-insensitive substring match is
// consulted only after the exit code has already been checked clean.
func containsCompileErrorMarker(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "error") || strings.Contains(lower, "not found")
}

func (r *Runner) run(ctx context.Context, desc catalogue.Descriptor, scratch, srcPath, binPath string, timeLimitMs, memoryLimitMB int) domain.RunnerOutcome {
	timeout := time.Duration(timeLimitMs) * time.Millisecond
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdLine := substitute(desc.RunCmdTemplate, srcPath, binPath, scratch)
	cmd := buildCommand(cctx, cmdLine, scratch)

	var killOnce sync.Once
	killOnOverflow := func() { killOnce.Do(func() { _ = cmd.Process.Kill() }) }

	capBytes := memoryLimitMB * 1024 * 1024
	stdout := newCappedBuffer(capBytes, killOnOverflow)
	stderr := newCappedBuffer(capBytes, killOnOverflow)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Start()
	if err != nil {
		return domain.RunnerOutcome{
			Status: domain.ExecutionFailed,
			Stderr: fmt.Sprintf("failed to start process: %v", err),
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-cctx.Done():
		_ = cmd.Process.Kill()
		waitErr = <-done
	}
	elapsed := time.Since(start)

	if cctx.Err() == context.DeadlineExceeded {
		stderrOut := stderr.String()
		if stderrOut == "" {
			stderrOut = "Execution timeout"
		}
		return domain.RunnerOutcome{
			Status:          domain.ExecutionTimeout,
			Stdout:          stdout.String(),
			Stderr:          stderrOut,
			ExecutionTimeMs: float64(elapsed.Milliseconds()),
			ExitCode:        nil,
			Timeout:         true,
		}
	}

	// The cap is enforced as each chunk arrives (killOnOverflow), so by
	// the time Wait has returned the process is already gone; this just
	// picks the right terminal classification for that kill.
	if stdout.Overflowed() || stderr.Overflowed() {
		stderrOut := stderr.String()
		if stderrOut == "" {
			stderrOut = fmt.Sprintf("output exceeded %d MB limit", memoryLimitMB)
		}
		return domain.RunnerOutcome{
			Status:          domain.ExecutionFailed,
			Stdout:          stdout.String(),
			Stderr:          stderrOut,
			ExecutionTimeMs: float64(elapsed.Milliseconds()),
			ExitCode:        intPtr(1),
			Timeout:         false,
		}
	}

	if waitErr == nil {
		return domain.RunnerOutcome{
			Status:          domain.ExecutionCompleted,
			Stdout:          stdout.String(),
			Stderr:          stderr.String(),
			ExecutionTimeMs: float64(elapsed.Milliseconds()),
			ExitCode:        intPtr(0),
			Timeout:         false,
		}
	}

	code := 1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	stderrOut := stderr.String()
	if stderrOut == "" {
		stderrOut = fmt.Sprintf("process exited with code %d", code)
	}
	return domain.RunnerOutcome{
		Status:          domain.ExecutionFailed,
		Stdout:          stdout.String(),
		Stderr:          stderrOut,
		ExecutionTimeMs: float64(elapsed.Milliseconds()),
		ExitCode:        intPtr(code),
		Timeout:         false,
	}
}

func substitute(template, srcPath, binPath, scratch string) string {
	s := strings.ReplaceAll(template, "{{src}}", srcPath)
	s = strings.ReplaceAll(s, "{{bin}}", binPath)
	s = strings.ReplaceAll(s, "{{bindir}}", scratch)
	return s
}

func buildCommand(ctx context.Context, cmdLine, workdir string) *exec.Cmd {
	fields := strings.Fields(cmdLine)
	var cmd *exec.Cmd
	if len(fields) == 0 {
		cmd = exec.CommandContext(ctx, "true")
	} else {
		cmd = exec.CommandContext(ctx, fields[0], fields[1:]...)
	}
	cmd.Dir = workdir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	return cmd
}

func intPtr(v int) *int { return &v }
