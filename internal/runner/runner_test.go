package runner

import (
	"context"
	"testing"
	"time"

	"github.com/codeexec/engine/internal/catalogue"
	"github.com/codeexec/engine/internal/domain"
)

func TestSubstitute_ReplacesAllPlaceholders(t *testing.T) {
	got := substitute("{{bin}} run {{src}} in {{bindir}}", "/tmp/src.py", "/tmp/bin", "/tmp")
	want := "/tmp/bin run /tmp/src.py in /tmp"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRun_UnsupportedRuntimeFailsFast(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "not-a-real-runtime", "print(1)", 5000, 256)
	if outcome.Status != domain.ExecutionFailed {
		t.Fatalf("got status %s, want FAILED", outcome.Status)
	}
}

func TestRun_PythonHelloWorldCompletes(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "python", "print('hi')\n", 5000, 256)
	if outcome.Status != domain.ExecutionCompleted {
		t.Skipf("python3 not available in this environment: status=%s stderr=%q", outcome.Status, outcome.Stderr)
	}
	if outcome.ExitCode == nil || *outcome.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", outcome.ExitCode)
	}
}

func TestRun_TimeoutClassifiesAsTimeout(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "python", "while True:\n    pass\n", 200, 256)
	if outcome.Status != domain.ExecutionTimeout {
		t.Skipf("python3 not available or unexpected status: %s", outcome.Status)
	}
	if !outcome.Timeout {
		t.Fatal("expected Timeout flag to be set")
	}
}

func TestRun_CompileErrorClassifiesAsFailed(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "gcc", "this is not valid C\n", 5000, 256)
	if outcome.Status != domain.ExecutionFailed {
		t.Skipf("gcc not available or unexpected status: %s", outcome.Status)
	}
	if outcome.Stderr == "" {
		t.Fatal("expected compiler diagnostics in stderr")
	}
}

func TestRun_RuntimeErrorClassifiesAsFailedWithExitCode(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "python", "raise SystemExit(3)\n", 5000, 256)
	if outcome.Status != domain.ExecutionFailed {
		t.Skipf("python3 not available or unexpected status: %s", outcome.Status)
	}
	if outcome.ExitCode == nil || *outcome.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %v", outcome.ExitCode)
	}
}

func TestRun_OutputCapEnforced(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "python",
		"while True:\n    print('x' * 10_000_000)\n", 5000, 1)
	if outcome.Status == domain.ExecutionFailed && outcome.Stderr != "" && len(outcome.Stdout) == 0 {
		t.Skip("python3 not available in this environment")
	}
	const oneMB = 1 << 20
	if len(outcome.Stdout) > oneMB {
		t.Fatalf("expected stdout capped near 1MB, got %d bytes", len(outcome.Stdout))
	}
	// Exceeding the cap must kill the (otherwise infinite) loop rather
	// than let it run to the wall-clock timeout.
	if outcome.Status != domain.ExecutionFailed {
		t.Fatalf("got status %s, want FAILED (process should be killed on overflow)", outcome.Status)
	}
	if outcome.Timeout {
		t.Fatal("expected the overflow kill to beat the timeout, not trigger it")
	}
}

func TestRun_FailedWithEmptyStderrGetsExitCodeFallback(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	outcome := r.Run(context.Background(), "node", "console.log('x'); process.exit(7)\n", 5000, 256)
	if outcome.Status != domain.ExecutionFailed {
		t.Skipf("node not available or unexpected status: %s", outcome.Status)
	}
	if outcome.Stderr == "" {
		t.Fatal("expected a non-empty stderr fallback on a FAILED row")
	}
	if outcome.ExitCode == nil || *outcome.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %v", outcome.ExitCode)
	}
}

func TestNewScratchDir_CreatesUniqueDirectories(t *testing.T) {
	r := New(catalogue.Default(), t.TempDir())
	d1, err := r.newScratchDir()
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	d2, err := r.newScratchDir()
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Fatal("expected distinct scratch directories")
	}
}
