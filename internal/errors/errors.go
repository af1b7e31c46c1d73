// Package errors provides centralized error definitions and error handling
// utilities for the Tetra codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - CompletionError: failures from the completion gateway
//   - SessionError: errors related to debate session management
//   - ArchiveError: errors related to archive persistence
//
// Sentinel errors represent common failure conditions. The completion
// taxonomy mirrors how the gateway fails:
//   - ErrAuth: credential rejected, terminal
//   - ErrCreditsExhausted: account out of credits, terminal, carries a hint
//   - ErrTransient: rate-limited/overloaded/gateway failure, retryable
//   - ErrFormatRejected: request encoding rejected, retryable via fallback
//   - ErrTimeout: request deadline exceeded, retryable
//   - ErrEmptyResponse: response below the minimum usable length
//   - ErrLoopDetected: degenerate repetitive output, never retried
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewCompletionError("gateway refused request", errors.ErrAuth).
//		WithModel("openai/gpt-4o").WithStatusCode(401)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrCreditsExhausted) { ... }
//
//	var compErr *errors.CompletionError
//	if errors.As(err, &compErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Completion-gateway sentinel errors
var (
	// ErrAuth indicates the gateway rejected the credential. Terminal; the
	// operator must supply a valid key before the session can resume.
	ErrAuth = New("authentication rejected")
	// ErrCreditsExhausted indicates the account balance or quota is spent.
	// Terminal; never retried automatically.
	ErrCreditsExhausted = New("credits exhausted")
	// ErrTransient indicates a rate limit, overload, or gateway failure.
	// Retryable with backoff.
	ErrTransient = New("transient gateway failure")
	// ErrFormatRejected indicates the backend refused the request encoding.
	// Retryable once via the plain-encoding fallback, not via backoff.
	ErrFormatRejected = New("request encoding rejected")
	// ErrTimeout indicates a completion request exceeded its deadline.
	ErrTimeout = New("completion timed out")
	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = New("empty response")
	// ErrLoopDetected indicates the model produced degenerate repetitive
	// output. Never retried automatically.
	ErrLoopDetected = New("repetitive output loop detected")
)

// Session-related sentinel errors
var (
	// ErrSessionNotRunning indicates an operation that requires a running session.
	ErrSessionNotRunning = New("session is not running")
	// ErrSessionCompleted indicates the session has already terminated.
	ErrSessionCompleted = New("session already completed")
	// ErrTurnInFlight indicates a turn or summary is already being processed.
	ErrTurnInFlight = New("turn already in flight")
	// ErrNoActiveParticipants indicates every participant has been disqualified.
	ErrNoActiveParticipants = New("no active participants remain")
	// ErrParticipantNotFound indicates an unknown participant id.
	ErrParticipantNotFound = New("participant not found")
	// ErrNoPendingDecision indicates a resolution was supplied with nothing to resolve.
	ErrNoPendingDecision = New("no pending decision")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// CompletionError
// -----------------------------------------------------------------------------

// CompletionError represents a failure from the completion gateway. It wraps
// one of the completion sentinels and carries the context needed to display
// and classify the failure: which model, which HTTP status, how many attempts
// were made, and (for credit failures) a remediation hint.
type CompletionError struct {
	msg        string
	err        error
	Model      string
	StatusCode int
	Attempts   int
	Hint       string
}

// NewCompletionError creates a CompletionError wrapping the given sentinel.
func NewCompletionError(msg string, err error) *CompletionError {
	return &CompletionError{msg: msg, err: err}
}

// WithModel attaches the backend model identifier.
func (e *CompletionError) WithModel(model string) *CompletionError {
	e.Model = model
	return e
}

// WithStatusCode attaches the HTTP-equivalent status code.
func (e *CompletionError) WithStatusCode(code int) *CompletionError {
	e.StatusCode = code
	return e
}

// WithAttempts records how many attempts were made before surfacing.
func (e *CompletionError) WithAttempts(n int) *CompletionError {
	e.Attempts = n
	return e
}

// WithHint attaches a remediation hint shown to the operator.
func (e *CompletionError) WithHint(hint string) *CompletionError {
	e.Hint = hint
	return e
}

func (e *CompletionError) Error() string {
	s := e.msg
	if e.Model != "" {
		s = fmt.Sprintf("%s (model %s)", s, e.Model)
	}
	if e.StatusCode != 0 {
		s = fmt.Sprintf("%s [status %d]", s, e.StatusCode)
	}
	if e.err != nil {
		s = fmt.Sprintf("%s: %v", s, e.err)
	}
	return s
}

// Unwrap returns the underlying sentinel.
func (e *CompletionError) Unwrap() error { return e.err }

// Is reports whether this error matches the target error.
func (e *CompletionError) Is(target error) bool {
	if t, ok := target.(*CompletionError); ok {
		return e.msg == t.msg
	}
	return errors.Is(e.err, target)
}

// Severity returns the severity level of this error.
func (e *CompletionError) Severity() Severity {
	switch {
	case errors.Is(e.err, ErrAuth), errors.Is(e.err, ErrCreditsExhausted):
		return SeverityCritical
	case errors.Is(e.err, ErrTransient), errors.Is(e.err, ErrTimeout):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// -----------------------------------------------------------------------------
// SessionError
// -----------------------------------------------------------------------------

// SessionError represents an error in debate session management.
type SessionError struct {
	msg       string
	err       error
	SessionID string
}

// NewSessionError creates a SessionError wrapping an underlying error.
func NewSessionError(msg string, err error) *SessionError {
	return &SessionError{msg: msg, err: err}
}

// WithSession attaches the session identifier.
func (e *SessionError) WithSession(id string) *SessionError {
	e.SessionID = id
	return e
}

func (e *SessionError) Error() string {
	s := e.msg
	if e.SessionID != "" {
		s = fmt.Sprintf("%s (session %s)", s, e.SessionID)
	}
	if e.err != nil {
		s = fmt.Sprintf("%s: %v", s, e.err)
	}
	return s
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error { return e.err }

// Is reports whether this error matches the target error.
func (e *SessionError) Is(target error) bool {
	if t, ok := target.(*SessionError); ok {
		return e.msg == t.msg
	}
	return errors.Is(e.err, target)
}

// -----------------------------------------------------------------------------
// ArchiveError
// -----------------------------------------------------------------------------

// ArchiveError represents a failure to persist or load a session archive.
type ArchiveError struct {
	msg  string
	err  error
	Path string
}

// NewArchiveError creates an ArchiveError wrapping an underlying error.
func NewArchiveError(msg string, err error) *ArchiveError {
	return &ArchiveError{msg: msg, err: err}
}

// WithPath attaches the filesystem path involved.
func (e *ArchiveError) WithPath(path string) *ArchiveError {
	e.Path = path
	return e
}

func (e *ArchiveError) Error() string {
	s := e.msg
	if e.Path != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Path)
	}
	if e.err != nil {
		s = fmt.Sprintf("%s: %v", s, e.err)
	}
	return s
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error { return e.err }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether the error is transient and may succeed if the
// same request is retried with backoff. Format rejections are not retryable
// by backoff; they require the encoding fallback.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// IsTerminal reports whether the error requires operator action and must
// never be retried automatically.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrCreditsExhausted) ||
		errors.Is(err, ErrLoopDetected)
}

// RemediationHint extracts the operator-facing hint from an error chain, or
// returns the empty string if none is attached.
func RemediationHint(err error) string {
	var compErr *CompletionError
	if errors.As(err, &compErr) {
		return compErr.Hint
	}
	return ""
}
