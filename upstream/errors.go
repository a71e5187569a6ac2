// Package upstream classifies failures returned by the remote API that tool
// handlers call. The dispatcher maps each Kind onto a protocol error code.
package upstream

import (
	"errors"
	"fmt"
)

// Kind is the classification of an upstream failure.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	// KindUnavailable covers network failures, timeouts and 5xx responses.
	KindUnavailable Kind = "unavailable"
	// KindRejected covers any other 4xx response.
	KindRejected Kind = "rejected"
)

// Retryable reports whether a failure of this kind is transient.
func (k Kind) Retryable() bool {
	return k == KindUnavailable || k == KindRateLimited
}

// Error is a classified upstream failure.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // sanitized, safe to show to the caller
	Err     error  // underlying cause, for diagnostics only
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the operation.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// KindForStatus classifies an HTTP status code. It returns "" for success
// codes.
func KindForStatus(status int) Kind {
	switch {
	case status < 400:
		return ""
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindRejected
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
