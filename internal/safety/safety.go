// Package safety implements admission-time checks: parameter bounds,
// session-scoped abuse limits, and an advisory scan for obvious
// infinite-loop patterns. None of these is a sandboxing boundary —
// they exist to keep obviously bad requests off the queue, not to
// guarantee safe execution.
package safety

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/codeexec/engine/internal/apierr"
)

const (
	minTimeLimitMs   = 100
	maxTimeLimitMs   = 60000
	minMemoryLimitMB = 32
	maxMemoryLimitMB = 2048

	abuseWindow       = 60 * time.Second
	abuseRateLimit    = 10
	abuseCircuitLimit = 5
)

// ValidateParams checks timeLimitMs and memoryLimitMB against the
// documented bounds and returns every violation found, not just
// the first — callers surface the full list in the 400 response.
func ValidateParams(timeLimitMs, memoryLimitMB int) []string {
	var violations []string
	if timeLimitMs < minTimeLimitMs || timeLimitMs > maxTimeLimitMs {
		violations = append(violations, fmt.Sprintf(
			"timeLimitMs must be between %d and %d, got %d", minTimeLimitMs, maxTimeLimitMs, timeLimitMs))
	}
	if memoryLimitMB < minMemoryLimitMB || memoryLimitMB > maxMemoryLimitMB {
		violations = append(violations, fmt.Sprintf(
			"memoryLimitMB must be between %d and %d, got %d", minMemoryLimitMB, maxMemoryLimitMB, memoryLimitMB))
	}
	return violations
}

// AbuseChecker counts recent executions for a session. It is satisfied
// by *store.Store; kept as an interface here so this package stays
// testable against a fake.
type AbuseChecker interface {
	RecentExecutionCounts(ctx context.Context, sessionID string, window time.Duration) (total, failed int, err error)
}

// CheckAbuse blocks a submission if the owning session has issued too
// many executions in the trailing window, or too many of those are
// FAILED (the "circuit" check; failures are counted, whether or not
// they were consecutive). A store error
// here fails open: admission proceeds and the error is logged by the
// caller, since an abuse-detection outage should not take down
// execution entirely.
func CheckAbuse(ctx context.Context, checker AbuseChecker, sessionID string) (*apierr.Error, error) {
	total, failed, err := checker.RecentExecutionCounts(ctx, sessionID, abuseWindow)
	if err != nil {
		return nil, err
	}
	if total >= abuseRateLimit {
		return apierr.NewRateLimited(fmt.Sprintf(
			"session %s issued %d executions in the last minute", sessionID, total), 60), nil
	}
	if failed >= abuseCircuitLimit {
		return apierr.NewRateLimited(fmt.Sprintf(
			"session %s has %d failed executions in the last minute", sessionID, failed), 60), nil
	}
	return nil, nil
}

// loopPattern pairs a compiled regexp with a human description, used
// purely for advisory logging — matching never blocks a submission.
type loopPattern struct {
	re   *regexp.Regexp
	desc string
}

// patternsByRuntime holds, per runtime key, a short list of regexes
// that tend to show up in accidental infinite loops for that language.
// These are heuristics, not a static analyzer.
var patternsByRuntime = map[string][]loopPattern{
	"python": {
		{regexp.MustCompile(`while\s+True\s*:`), "unconditional while True"},
		{regexp.MustCompile(`while\s+1\s*:`), "unconditional while 1"},
		{regexp.MustCompile(`for\s+\w+\s+in\s+iter\(\s*int\s*,\s*1\s*\)`), "unconditional for ... in iter(int, 1)"},
	},
	"node": {
		{regexp.MustCompile(`while\s*\(\s*true\s*\)`), "unconditional while(true)"},
		{regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`), "unconditional for(;;)"},
		{regexp.MustCompile(`while\s*\(\s*1\s*\)`), "unconditional while(1)"},
	},
	"gcc": {
		{regexp.MustCompile(`while\s*\(\s*1\s*\)`), "unconditional while(1)"},
		{regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`), "unconditional for(;;)"},
		{regexp.MustCompile(`while\s*\(\s*true\s*\)`), "unconditional while(true)"},
	},
	"g++": {
		{regexp.MustCompile(`while\s*\(\s*1\s*\)`), "unconditional while(1)"},
		{regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`), "unconditional for(;;)"},
		{regexp.MustCompile(`while\s*\(\s*true\s*\)`), "unconditional while(true)"},
	},
}

// ScanLoopPatterns returns advisory descriptions of any suspicious
// unconditional-loop patterns found in source for the given runtime.
// The caller logs these; they never affect admission.
func ScanLoopPatterns(source, runtimeKey string) []string {
	var hits []string
	for _, p := range patternsByRuntime[runtimeKey] {
		if p.re.MatchString(source) {
			hits = append(hits, p.desc)
		}
	}
	return hits
}
