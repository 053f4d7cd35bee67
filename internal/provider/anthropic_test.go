// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const anthropicTestModel = "claude-3-5-haiku-20241022"

func writeAnthropicEvent(w http.ResponseWriter, eventType, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestAnthropic_StreamsDeltas(t *testing.T) {
	var captured anthropicRequest
	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "text/event-stream")
		writeAnthropicEvent(w, "message_start", `{"type":"message_start"}`)
		writeAnthropicEvent(w, "ping", `{"type":"ping"}`)
		writeAnthropicEvent(w, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`)
		writeAnthropicEvent(w, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`)
		writeAnthropicEvent(w, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter(Options{APIKey: "sk-ant-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("anthropic", anthropicTestModel))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "Hello", text)
	require.Nil(t, final.Err)

	require.Equal(t, "sk-ant-test", gotKey)
	require.Equal(t, anthropicVersion, gotVersion)
	require.Equal(t, anthropicTestModel, captured.Model)
	require.True(t, captured.Stream)
}

// TestAnthropic_SystemMessagesLifted verifies system messages leave the
// messages array and travel in the dedicated top-level field.
func TestAnthropic_SystemMessagesLifted(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "text/event-stream")
		writeAnthropicEvent(w, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter(Options{APIKey: "sk-ant-test", BaseURL: server.URL})
	messages := []Message{
		NewSystemMessage("You are terse."),
		NewUserMessage("hello"),
		NewAssistantMessage("hi"),
		NewUserMessage("more"),
	}
	ch, err := adapter.Generate(context.Background(), messages, testConfig("anthropic", anthropicTestModel))
	require.NoError(t, err)
	collect(t, ch)

	require.Equal(t, "You are terse.", captured.System)
	require.Len(t, captured.Messages, 3)
	for _, msg := range captured.Messages {
		require.NotEqual(t, "system", msg.Role)
	}
}

// TestAnthropic_ErrorEvent verifies a mid-stream error event ends the
// stream with StreamInterrupted, keeping the deltas already delivered.
func TestAnthropic_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeAnthropicEvent(w, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"part"}}`)
		writeAnthropicEvent(w, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter(Options{APIKey: "sk-ant-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("anthropic", anthropicTestModel))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "part", text)
	require.NotNil(t, final.Err)
	require.Equal(t, KindStreamInterrupted, final.Err.Kind)
	require.Contains(t, final.Err.Message, "overloaded_error")
}

func TestAnthropic_MissingKeyIsTerminalChunk(t *testing.T) {
	adapter := NewAnthropicAdapter(Options{})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("anthropic", anthropicTestModel))
	require.NoError(t, err)

	_, final := collect(t, ch)
	require.NotNil(t, final.Err)
	require.Equal(t, KindAuthError, final.Err.Kind)
}

func TestAnthropic_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error"}}`)
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter(Options{APIKey: "sk-ant-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("anthropic", anthropicTestModel))
	require.NoError(t, err)

	_, final := collect(t, ch)
	require.NotNil(t, final.Err)
	require.Equal(t, KindRateLimited, final.Err.Kind)
	require.NotZero(t, final.Err.RetryAfter)
}
