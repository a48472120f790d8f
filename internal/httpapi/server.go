// Package httpapi implements the HTTP surface: JSON request/response
// handling, routing via the standard library's method-and-path mux,
// and the transport-level concerns (CORS, rate limiting) that sit in
// front of admission and the stores.
package httpapi

import (
	"context"
	"net/http"

	"github.com/codeexec/engine/internal/domain"
	"github.com/codeexec/engine/internal/ephemeral"
)

// Store is the subset of *store.Store the HTTP layer reads and writes
// directly (everything execution-mutating goes through Admitter).
type Store interface {
	Languages(ctx context.Context) ([]domain.Language, error)
	Language(ctx context.Context, id string) (domain.Language, error)
	CreateSession(ctx context.Context, id, languageID, sourceCode string) (domain.Session, error)
	Session(ctx context.Context, id string) (domain.Session, error)
	UpdateSource(ctx context.Context, id, sourceCode string) (domain.Session, error)
	CloseSession(ctx context.Context, id string) (domain.Session, error)
	ExecutionsBySession(ctx context.Context, sessionID string, limit int) ([]domain.Execution, error)
	Execution(ctx context.Context, id string) (domain.Execution, error)
}

// Admitter is the subset of *admission.Admitter the HTTP layer calls.
type Admitter interface {
	Submit(ctx context.Context, sessionID, sourceCode, runtimeKey string, timeLimitMs, memoryLimitMB int) (domain.Execution, error)
}

// Server wires the store and admitter to the HTTP surface.
type Server struct {
	store              Store
	admitter           Admitter
	events             *ephemeral.Store
	defaultTimeLimitMs int
	defaultMemoryMB    int
	limiter            *RateLimiter
}

// Config holds the defaults the HTTP layer falls back to when a run
// request omits time/memory limits.
type Config struct {
	DefaultTimeLimitMs int
	DefaultMemoryMB    int
}

// New constructs a Server and its route mux.
func New(store Store, admitter Admitter, events *ephemeral.Store, cfg Config) http.Handler {
	s := &Server{
		store:              store,
		admitter:           admitter,
		events:             events,
		defaultTimeLimitMs: cfg.DefaultTimeLimitMs,
		defaultMemoryMB:    cfg.DefaultMemoryMB,
		limiter:            NewRateLimiter(5.0, 20.0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /languages", s.handleListLanguages)
	mux.HandleFunc("GET /languages/{id}", s.handleGetLanguage)
	mux.HandleFunc("POST /code-sessions", s.handleCreateSession)
	mux.HandleFunc("GET /code-sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /code-sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("POST /code-sessions/{id}/run", s.handleRun)
	mux.HandleFunc("PATCH /code-sessions/{id}/close", s.handleCloseSession)
	mux.HandleFunc("GET /code-sessions/{id}/executions", s.handleListExecutions)
	mux.HandleFunc("GET /code-sessions/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /executions/{id}", s.handleGetExecution)

	return enableCORS(s.limiter.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// enableCORS allows the editor frontend, served from a different
// origin in development, to call this API directly.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
