package provider

import (
	"errors"
	"fmt"
)

// Kind classifies an AI-call failure for retry decisions.
type Kind int

const (
	// KindRateLimited means the upstream rejected the call for rate reasons
	// (HTTP 429). Retryable after backoff.
	KindRateLimited Kind = iota + 1
	// KindQuotaExceeded means the account is out of quota or credit.
	// Terminal; requires operator or user action.
	KindQuotaExceeded
	// KindInvalidResponse means the upstream returned text we could not
	// parse into the expected structure. Retryable a bounded number of
	// times, then callers degrade to their heuristic fallback.
	KindInvalidResponse
	// KindTransient covers 5xx responses and network resets. Retryable
	// with backoff.
	KindTransient
	// KindValidation means the caller's input was malformed. Never
	// retried; surfaced immediately.
	KindValidation
)

// String returns the taxonomy name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindInvalidResponse:
		return "invalid_response"
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// AIError is a typed error from an AI-backed call.
type AIError struct {
	Kind Kind
	Op   string // operation name, e.g. "match", "rank_skills"
	Err  error
}

func (e *AIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *AIError) Unwrap() error { return e.Err }

// Retryable reports whether the error class may be retried.
func (e *AIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTransient, KindInvalidResponse:
		return true
	}
	return false
}

// NewAIError wraps err with an operation name and kind.
func NewAIError(op string, kind Kind, err error) *AIError {
	return &AIError{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether err is a retryable AI error. Untyped errors
// (e.g. raw network failures) are treated as transient and retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ai *AIError
	if errors.As(err, &ai) {
		return ai.Retryable()
	}
	return true
}

// KindOf returns the taxonomy kind of err, or 0 for untyped errors.
func KindOf(err error) Kind {
	var ai *AIError
	if errors.As(err, &ai) {
		return ai.Kind
	}
	return 0
}

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 402 || status == 403:
		return KindQuotaExceeded
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindValidation
	}
	return KindTransient
}
