package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_AllowsWithinBurstCapacity(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("expected request %d to be allowed within burst capacity", i)
		}
	}
}

func TestRateLimiter_BlocksOnceBurstExhausted(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	rl.Allow("1.2.3.4")
	rl.Allow("1.2.3.4")
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected third request to be blocked")
	}
}

func TestRateLimiter_TracksVisitorsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("expected first visitor's request to be allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("expected a different visitor to have its own bucket")
	}
}

func TestMiddleware_BlocksWithTooManyRequests(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "9.9.9.9:12345"

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rec2.Code)
	}
}

func TestMiddleware_UsesXForwardedForWhenPresent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "10.0.0.1:1"
	req1.Header.Set("X-Forwarded-For", "8.8.8.8")
	handler.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "10.0.0.2:2" // different RemoteAddr, same forwarded IP
	req2.Header.Set("X-Forwarded-For", "8.8.8.8")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected shared forwarded IP to share one bucket, got %d", rec2.Code)
	}
}
