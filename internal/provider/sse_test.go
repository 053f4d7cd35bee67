// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSEReader_DataOnlyEvents(t *testing.T) {
	input := "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n"
	r := newSSEReader(strings.NewReader(input))

	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, `{"b":2}`, string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "[DONE]", string(data))

	_, _, err = r.ReadEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEReader_NamedEvents(t *testing.T) {
	input := "event: content_block_delta\ndata: {\"x\":1}\n\nevent: message_stop\ndata: {}\n\n"
	r := newSSEReader(strings.NewReader(input))

	eventType, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "content_block_delta", eventType)
	require.Equal(t, `{"x":1}`, string(data))

	eventType, _, err = r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "message_stop", eventType)
}

func TestSSEReader_CRLFAndComments(t *testing.T) {
	input := ": keep-alive\r\nid: 7\r\ndata: hello\r\n\r\n"
	r := newSSEReader(strings.NewReader(input))

	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

// TestSSEReader_MultilineData verifies multi-line data fields are joined
// with newlines per the SSE spec.
func TestSSEReader_MultilineData(t *testing.T) {
	input := "data: line1\ndata: line2\n\n"
	r := newSSEReader(strings.NewReader(input))

	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "line1\nline2", string(data))
}

// TestSSEReader_EOFWithBufferedData verifies a stream truncated before the
// trailing blank line still yields the buffered event.
func TestSSEReader_EOFWithBufferedData(t *testing.T) {
	r := newSSEReader(strings.NewReader("data: partial"))

	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "partial", string(data))

	_, _, err = r.ReadEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEReader_EventSizeLimit(t *testing.T) {
	huge := "data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"
	r := newSSEReader(strings.NewReader(huge))

	_, _, err := r.ReadEvent()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStreamInterrupted)
}
