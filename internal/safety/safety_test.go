package safety

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidateParams_WithinBounds(t *testing.T) {
	if v := ValidateParams(5000, 256); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestValidateParams_TimeLimitOutOfBounds(t *testing.T) {
	v := ValidateParams(50, 256)
	if len(v) != 1 {
		t.Fatalf("expected one violation, got %v", v)
	}
}

func TestValidateParams_MemoryOutOfBounds(t *testing.T) {
	v := ValidateParams(5000, 16)
	if len(v) != 1 {
		t.Fatalf("expected one violation, got %v", v)
	}
}

func TestValidateParams_BothOutOfBounds(t *testing.T) {
	v := ValidateParams(70000, 4096)
	if len(v) != 2 {
		t.Fatalf("expected two violations, got %v", v)
	}
}

type fakeAbuseChecker struct {
	total, failed int
	err           error
}

func (f *fakeAbuseChecker) RecentExecutionCounts(ctx context.Context, sessionID string, window time.Duration) (int, int, error) {
	return f.total, f.failed, f.err
}

func TestCheckAbuse_UnderLimits(t *testing.T) {
	blocked, err := CheckAbuse(context.Background(), &fakeAbuseChecker{total: 2, failed: 0}, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocked != nil {
		t.Fatalf("expected no block, got %v", blocked)
	}
}

func TestCheckAbuse_RateLimitExceeded(t *testing.T) {
	blocked, err := CheckAbuse(context.Background(), &fakeAbuseChecker{total: abuseRateLimit}, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocked == nil {
		t.Fatal("expected a block")
	}
}

func TestCheckAbuse_CircuitExceeded(t *testing.T) {
	blocked, err := CheckAbuse(context.Background(), &fakeAbuseChecker{total: 1, failed: abuseCircuitLimit}, "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocked == nil {
		t.Fatal("expected a block")
	}
}

func TestCheckAbuse_StoreErrorPropagates(t *testing.T) {
	wantErr := errors.New("store unavailable")
	_, err := CheckAbuse(context.Background(), &fakeAbuseChecker{err: wantErr}, "session-1")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}

func TestScanLoopPatterns_DetectsPythonInfiniteLoop(t *testing.T) {
	hits := ScanLoopPatterns("while True:\n    pass\n", "python")
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
}

func TestScanLoopPatterns_CleanSourceNoHits(t *testing.T) {
	hits := ScanLoopPatterns("print('hello')\n", "python")
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestScanLoopPatterns_UnknownRuntimeNoHits(t *testing.T) {
	hits := ScanLoopPatterns("while(1) {}", "unknown-runtime")
	if len(hits) != 0 {
		t.Fatalf("expected no hits for unknown runtime, got %v", hits)
	}
}

func TestScanLoopPatterns_DetectsCStyleForever(t *testing.T) {
	hits := ScanLoopPatterns("for(;;) { x++; }", "gcc")
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
}
