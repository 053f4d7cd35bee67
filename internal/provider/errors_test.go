// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// ERROR IDENTITY TESTS
// =============================================================================

// TestError_IsMatchesByKind verifies that errors.Is matches sentinel values
// by kind regardless of message or wrapped cause.
func TestError_IsMatchesByKind(t *testing.T) {
	err := WrapError(KindAuthError, "bad key for openai", errors.New("401"))

	require.True(t, errors.Is(err, ErrAuth))
	require.False(t, errors.Is(err, ErrRateLimited))
	require.False(t, errors.Is(err, ErrUnknownProvider))
}

// TestError_IsThroughWrapping verifies matching survives fmt.Errorf wrapping.
func TestError_IsThroughWrapping(t *testing.T) {
	inner := NewError(KindSessionBusy, "a generation is already in flight")
	wrapped := fmt.Errorf("send failed: %w", inner)

	require.True(t, errors.Is(wrapped, ErrSessionBusy))

	var pe *Error
	require.True(t, errors.As(wrapped, &pe))
	require.Equal(t, KindSessionBusy, pe.Kind)
}

func TestError_Message(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", NewError(KindUnknownSession, "no session"), "UnknownSession: no session"},
		{"kind only", &Error{Kind: KindAuthError}, "AuthError"},
		{"with cause", WrapError(KindProviderUnavailable, "connect", errors.New("refused")), "ProviderUnavailable: connect: refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestAsError(t *testing.T) {
	require.Nil(t, AsError(nil))

	// Taxonomy errors pass through unchanged.
	orig := NewError(KindRateLimited, "slow down")
	require.Same(t, orig, AsError(orig))

	// Deadline errors classify as provider unavailability.
	require.Equal(t, KindProviderUnavailable, AsError(context.DeadlineExceeded).Kind)

	// Arbitrary errors are wrapped, not dropped.
	cause := errors.New("dial tcp: connection refused")
	got := AsError(cause)
	require.Equal(t, KindProviderUnavailable, got.Kind)
	require.ErrorIs(t, got, cause)
}

// =============================================================================
// HTTP STATUS MAPPING TESTS
// =============================================================================

func TestErrorFromStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuthError},
		{403, KindAuthError},
		{429, KindRateLimited},
		{400, KindInvalidRequest},
		{404, KindInvalidRequest},
		{422, KindInvalidRequest},
		{500, KindProviderUnavailable},
		{502, KindProviderUnavailable},
		{503, KindProviderUnavailable},
	}
	for _, tc := range cases {
		got := errorFromStatus(tc.status, "body", "")
		require.Equal(t, tc.want, got.Kind, "status %d", tc.status)
	}
}

func TestErrorFromStatus_RetryAfterSeconds(t *testing.T) {
	err := errorFromStatus(429, `{"error":"rate limit"}`, "30")
	require.Equal(t, KindRateLimited, err.Kind)
	require.Equal(t, 30*time.Second, err.RetryAfter)
}

func TestErrorFromStatus_RetryAfterAbsent(t *testing.T) {
	err := errorFromStatus(429, "", "")
	require.Equal(t, KindRateLimited, err.Kind)
	require.Zero(t, err.RetryAfter)
}

func TestParseRetryAfter(t *testing.T) {
	require.Equal(t, 30*time.Second, parseRetryAfter("30"))
	require.Zero(t, parseRetryAfter(""))
	require.Zero(t, parseRetryAfter("soon"))

	// HTTP-date form: a future date yields a positive hint, a date already
	// in the past clamps to zero rather than going negative.
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	require.Greater(t, got, time.Duration(0))
	require.LessOrEqual(t, got, time.Minute)

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	require.Zero(t, parseRetryAfter(past))
}

func TestTruncateBody(t *testing.T) {
	short := "short body"
	require.Equal(t, short, truncateBody(short))

	long := make([]byte, 2048)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateBody(string(long))
	require.Len(t, got, 512+3)
	require.True(t, got[len(got)-3:] == "...")
}
