package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{SessionNotFound, http.StatusNotFound},
		{InvalidParameter, http.StatusBadRequest},
		{RateLimited, http.StatusTooManyRequests},
		{Kind("totally-unknown"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := New(c.kind, "boom")
		if got := err.Status(); got != c.want {
			t.Errorf("kind %s: got status %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestError_MessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: SessionNotFound}
	if err.Error() != string(SessionNotFound) {
		t.Errorf("got %q, want %q", err.Error(), SessionNotFound)
	}
}

func TestError_IsMatchesByKind(t *testing.T) {
	err := New(SessionNotFound, "session abc not found")
	target := New(SessionNotFound, "")
	if !errors.Is(err, target) {
		t.Fatal("expected errors.Is to match by kind")
	}

	other := New(SessionClosed, "")
	if errors.Is(err, other) {
		t.Fatal("expected errors.Is to not match different kinds")
	}
}

func TestNewInvalidParameter_CarriesViolations(t *testing.T) {
	err := NewInvalidParameter([]string{"a", "b"})
	if len(err.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(err.Violations))
	}
	if err.Status() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", err.Status())
	}
}

func TestNewRateLimited_CarriesRetryAfter(t *testing.T) {
	err := NewRateLimited("too many", 42)
	if err.RetryAfterS != 42 {
		t.Fatalf("expected retryAfterS 42, got %d", err.RetryAfterS)
	}
}
