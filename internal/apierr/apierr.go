// Package apierr defines the transport-agnostic error taxonomy shared
// between admission, the safety gate, the stores, and the HTTP layer.
// Each kind carries the HTTP status it maps to so the HTTP layer never
// has to guess.
package apierr

import "net/http"

// Kind identifies one error taxonomy entry.
type Kind string

const (
	InvalidParameter  Kind = "InvalidParameter"
	SourceTooLarge    Kind = "SourceTooLarge"
	SessionNotFound   Kind = "SessionNotFound"
	SessionClosed     Kind = "SessionClosed"
	LanguageNotFound  Kind = "LanguageNotFound"
	RateLimited       Kind = "RateLimited"
	ExecutionNotFound Kind = "ExecutionNotFound"
	InternalError     Kind = "InternalError"
)

var statusByKind = map[Kind]int{
	InvalidParameter:  http.StatusBadRequest,
	SourceTooLarge:    http.StatusBadRequest,
	SessionNotFound:   http.StatusNotFound,
	SessionClosed:     http.StatusBadRequest,
	LanguageNotFound:  http.StatusNotFound,
	RateLimited:       http.StatusTooManyRequests,
	ExecutionNotFound: http.StatusNotFound,
	InternalError:     http.StatusInternalServerError,
}

// Error is the concrete error type raised across the pipeline.
// Message is the human-readable cause; Violations carries the full
// list of parameter violations when Kind is InvalidParameter.
type Error struct {
	Kind        Kind
	Message     string
	Violations  []string
	RetryAfterS int // seconds; only meaningful for RateLimited
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Status returns the HTTP status code this error maps to.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewRateLimited constructs a RateLimited error carrying the retry delay.
func NewRateLimited(reason string, retryAfterS int) *Error {
	return &Error{Kind: RateLimited, Message: reason, RetryAfterS: retryAfterS}
}

// NewInvalidParameter constructs an InvalidParameter error carrying the
// full list of violations, as required by validateParams.
func NewInvalidParameter(violations []string) *Error {
	return &Error{Kind: InvalidParameter, Message: "invalid parameters", Violations: violations}
}

// Is implements errors.Is support by Kind so callers can write
// errors.Is(err, apierr.New(apierr.SessionNotFound, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
