// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind categorizes every failure the core can surface.
type ErrorKind int

const (
	// KindUnknownProvider indicates the provider id is not registered.
	KindUnknownProvider ErrorKind = iota
	// KindUnsupportedModel indicates the model is not in the adapter's supported set.
	KindUnsupportedModel
	// KindUnknownSession indicates the session id does not exist.
	KindUnknownSession
	// KindSessionBusy indicates the session already has a generation in flight.
	KindSessionBusy
	// KindAuthError indicates a bad or missing credential.
	KindAuthError
	// KindRateLimited indicates the provider rejected the request for rate reasons.
	KindRateLimited
	// KindInvalidRequest indicates malformed generation parameters.
	KindInvalidRequest
	// KindProviderUnavailable indicates a network failure, timeout, or provider 5xx.
	KindProviderUnavailable
	// KindStreamInterrupted indicates the connection dropped mid-stream.
	KindStreamInterrupted
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnknownProvider:
		return "UnknownProvider"
	case KindUnsupportedModel:
		return "UnsupportedModel"
	case KindUnknownSession:
		return "UnknownSession"
	case KindSessionBusy:
		return "SessionBusy"
	case KindAuthError:
		return "AuthError"
	case KindRateLimited:
		return "RateLimited"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindStreamInterrupted:
		return "StreamInterrupted"
	default:
		return "Unknown"
	}
}

// Error is the single error type carried across the provider boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// RetryAfter is the provider's retry hint for KindRateLimited, if any.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" && e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Kind.String() + ": " + e.Message
	}
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so callers can use errors.Is with the
// sentinel values below regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrUnknownProvider     = &Error{Kind: KindUnknownProvider, Message: "unknown provider"}
	ErrUnsupportedModel    = &Error{Kind: KindUnsupportedModel, Message: "unsupported model"}
	ErrUnknownSession      = &Error{Kind: KindUnknownSession, Message: "unknown session"}
	ErrSessionBusy         = &Error{Kind: KindSessionBusy, Message: "session busy"}
	ErrAuth                = &Error{Kind: KindAuthError, Message: "authentication failed"}
	ErrRateLimited         = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable, Message: "provider unavailable"}
	ErrStreamInterrupted   = &Error{Kind: KindStreamInterrupted, Message: "stream interrupted"}
)

// NewError creates an Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error with the given kind wrapping a cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// AsError coerces an arbitrary error into the taxonomy.
//
// Context cancellation and deadline errors become ProviderUnavailable when
// they occur before the stream starts; mid-stream classification is the
// adapter's responsibility.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindProviderUnavailable, "request deadline exceeded", err)
	}
	return WrapError(KindProviderUnavailable, "request failed", err)
}

// errorFromStatus maps an HTTP error response to the taxonomy.
//
// 401/403 -> AuthError, 429 -> RateLimited (with Retry-After hint),
// 400/404/422 -> InvalidRequest, everything else -> ProviderUnavailable.
func errorFromStatus(status int, body string, retryAfter string) *Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(KindAuthError, truncateBody(body))
	case http.StatusTooManyRequests:
		e := NewError(KindRateLimited, truncateBody(body))
		e.RetryAfter = parseRetryAfter(retryAfter)
		return e
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return NewError(KindInvalidRequest, truncateBody(body))
	default:
		return NewError(KindProviderUnavailable, "status "+strconv.Itoa(status)+": "+truncateBody(body))
	}
}

// parseRetryAfter parses a Retry-After header as seconds or an HTTP date.
// A date already in the past yields zero, never a negative hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// truncateBody limits error bodies embedded in messages.
func truncateBody(body string) string {
	const max = 512
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
