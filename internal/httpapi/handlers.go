package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/codeexec/engine/internal/apierr"
	"github.com/codeexec/engine/internal/domain"
	"github.com/google/uuid"
)

const maxSourceBytes = 1 << 20 // 1 MB, per the source-size bound on session updates

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := s.store.Languages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(languages))
	for _, l := range languages {
		out = append(out, map[string]interface{}{
			"id":                    l.ID,
			"name":                  l.Name,
			"runtime":               l.RuntimeKey,
			"version":               l.Version,
			"default_time_limit_ms": l.DefaultTimeLimitMs,
			"default_memory_mb":     l.DefaultMemoryLimitMB,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": len(out), "languages": out})
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, err := s.store.Language(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.LanguageNotFound, "language "+id+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":                    l.ID,
		"name":                  l.Name,
		"runtime":               l.RuntimeKey,
		"version":               l.Version,
		"file_name":             l.FileName,
		"template_code":         l.TemplateCode,
		"default_time_limit_ms": l.DefaultTimeLimitMs,
		"default_memory_mb":     l.DefaultMemoryLimitMB,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LanguageID string `json:"language_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apiErrorf(http.StatusBadRequest, "invalid request body"))
		return
	}
	if req.LanguageID == "" {
		writeError(w, apierr.New(apierr.InvalidParameter, "language_id is required"))
		return
	}

	language, err := s.store.Language(r.Context(), req.LanguageID)
	if err != nil {
		writeError(w, apierr.New(apierr.LanguageNotFound, "language "+req.LanguageID+" not found"))
		return
	}

	sessionID := uuid.NewString()
	session, err := s.store.CreateSession(r.Context(), sessionID, language.ID, language.TemplateCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"status":     session.Status,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.store.Session(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.SessionNotFound, "session "+id+" not found"))
		return
	}
	language, err := s.store.Language(r.Context(), session.LanguageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  session.ID,
		"status":      session.Status,
		"source_code": session.SourceCode,
		"language": map[string]interface{}{
			"id":      language.ID,
			"name":    language.Name,
			"runtime": language.RuntimeKey,
		},
		"created_at": session.CreatedAt,
		"updated_at": session.UpdatedAt,
	})
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		SourceCode string `json:"source_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apiErrorf(http.StatusBadRequest, "invalid request body"))
		return
	}
	if req.SourceCode == "" {
		writeError(w, apierr.New(apierr.SourceTooLarge, "source_code must not be empty"))
		return
	}
	if len(req.SourceCode) > maxSourceBytes {
		writeError(w, apierr.New(apierr.SourceTooLarge, "source_code exceeds 1MB"))
		return
	}

	session, err := s.store.UpdateSource(r.Context(), id, req.SourceCode)
	if err != nil {
		writeError(w, apierr.New(apierr.SessionNotFound, "session "+id+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"status":     session.Status,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.store.CloseSession(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.SessionNotFound, "session "+id+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"status":     session.Status,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		TimeLimitMs   *int `json:"time_limit_ms"`
		MemoryLimitMB *int `json:"memory_limit_mb"`
	}
	// A missing or empty body is valid; the defaults below apply.
	_ = json.NewDecoder(r.Body).Decode(&req)

	timeLimitMs := s.defaultTimeLimitMs
	if req.TimeLimitMs != nil {
		timeLimitMs = *req.TimeLimitMs
	}
	memoryLimitMB := s.defaultMemoryMB
	if req.MemoryLimitMB != nil {
		memoryLimitMB = *req.MemoryLimitMB
	}

	session, err := s.store.Session(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.SessionNotFound, "session "+id+" not found"))
		return
	}
	language, err := s.store.Language(r.Context(), session.LanguageID)
	if err != nil {
		writeError(w, err)
		return
	}

	execution, err := s.admitter.Submit(r.Context(), id, session.SourceCode, language.RuntimeKey, timeLimitMs, memoryLimitMB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"execution_id": execution.ID,
		"status":       execution.Status,
	})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apierr.New(apierr.InvalidParameter, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	executions, err := s.store.ExecutionsBySession(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"executions": executionSummaries(executions),
	})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	execution, err := s.store.Execution(r.Context(), id)
	if err != nil {
		writeError(w, apierr.New(apierr.ExecutionNotFound, "execution "+id+" not found"))
		return
	}

	body := map[string]interface{}{
		"execution_id": execution.ID,
		"status":       execution.Status,
	}
	if execution.Status.IsTerminal() {
		body["stdout"] = derefStr(execution.Stdout)
		body["stderr"] = derefStr(execution.Stderr)
		body["execution_time_ms"] = derefFloat(execution.ExecutionTimeMs)
		body["exit_code"] = execution.ExitCode
		body["timeout"] = execution.Timeout
	}
	writeJSON(w, http.StatusOK, body)
}

func executionSummaries(executions []domain.Execution) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(executions))
	for _, e := range executions {
		item := map[string]interface{}{
			"execution_id": e.ID,
			"status":       e.Status,
			"created_at":   e.CreatedAt,
		}
		if e.Status.IsTerminal() {
			item["execution_time_ms"] = derefFloat(e.ExecutionTimeMs)
			item["exit_code"] = e.ExitCode
		}
		out = append(out, item)
	}
	return out
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
