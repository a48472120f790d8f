package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/codeexec/engine/internal/apierr"
)

// httpError is a plain HTTP-layer error for cases with no apierr.Kind
// of their own (malformed JSON, the transport-level rate limiter).
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func apiErrorf(status int, message string) *httpError {
	return &httpError{status: status, message: message}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("httpapi: encode response failed", "error", err)
	}
}

// writeError maps any error to an HTTP status and a JSON error body.
// *apierr.Error carries its own status and, for RateLimited, a
// retryAfter field; *httpError carries its own status; everything else
// is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		body := map[string]interface{}{"error": apiErr.Message}
		if apiErr.Kind == apierr.InvalidParameter && len(apiErr.Violations) > 0 {
			body["violations"] = apiErr.Violations
		}
		if apiErr.Kind == apierr.RateLimited {
			body["retryAfter"] = apiErr.RetryAfterS
		}
		writeJSON(w, apiErr.Status(), body)
		return
	}

	var httpErr *httpError
	if errors.As(err, &httpErr) {
		writeJSON(w, httpErr.status, map[string]string{"error": httpErr.message})
		return
	}

	slog.Error("httpapi: unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
