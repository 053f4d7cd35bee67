// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collect drains a chunk stream, returning the concatenated delta text and
// the terminal chunk. It fails the test if no terminal chunk arrives.
func collect(t *testing.T, ch <-chan StreamChunk) (string, StreamChunk) {
	t.Helper()
	var text string
	for chunk := range ch {
		text += chunk.Delta
		if chunk.Final {
			// The channel must close right after the terminal chunk.
			_, open := <-ch
			require.False(t, open, "channel left open after terminal chunk")
			return text, chunk
		}
	}
	t.Fatal("stream closed without a terminal chunk")
	return "", StreamChunk{}
}

func testConfig(providerID, model string) GenerationConfig {
	return GenerationConfig{Provider: providerID, Model: model, Temperature: 0.7, MaxTokens: 100}
}

// sseCompletionServer replays OpenAI-style SSE deltas followed by [DONE].
func sseCompletionServer(t *testing.T, deltas []string, capture *chatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestOpenAI_StreamsDeltasInOrder(t *testing.T) {
	var captured chatCompletionRequest
	server := sseCompletionServer(t, []string{"Hello", ", ", "world"}, &captured)
	defer server.Close()

	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "Hello, world", text)
	require.Nil(t, final.Err)

	require.Equal(t, "gpt-4o", captured.Model)
	require.True(t, captured.Stream)
	require.Equal(t, 100, captured.MaxTokens)
}

func TestOpenAI_FinishReasonTerminates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"done\"},\"finish_reason\":\"stop\"}]}\n\n")
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "done", text)
	require.Nil(t, final.Err)
}

func TestOpenAI_SkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: not json at all\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "ok", text)
	require.Nil(t, final.Err)
}

// TestOpenAI_DroppedConnection verifies that a stream ending without [DONE]
// surfaces as StreamInterrupted with the partial deltas already delivered.
func TestOpenAI_DroppedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		// Handler returns without [DONE]; the connection just ends.
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Equal(t, "partial", text)
	require.NotNil(t, final.Err)
	require.Equal(t, KindStreamInterrupted, final.Err.Kind)
}

// =============================================================================
// ERROR PATH TESTS
// =============================================================================

// TestOpenAI_MissingKeyIsTerminalChunk verifies the lazy credential check:
// Generate succeeds synchronously and the AuthError arrives in-stream.
func TestOpenAI_MissingKeyIsTerminalChunk(t *testing.T) {
	adapter := NewOpenAIAdapter(Options{})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)

	text, final := collect(t, ch)
	require.Empty(t, text)
	require.NotNil(t, final.Err)
	require.Equal(t, KindAuthError, final.Err.Kind)
}

func TestOpenAI_UnsupportedModelIsSynchronous(t *testing.T) {
	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test"})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "no-such-model"))
	require.Nil(t, ch)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedModel))
}

func TestOpenAI_EmptyMessagesIsSynchronous(t *testing.T) {
	adapter := NewOpenAIAdapter(Options{APIKey: "sk-test"})
	_, err := adapter.Generate(context.Background(), nil, testConfig("openai", "gpt-4o"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestOpenAI_HTTPStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuthError},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindInvalidRequest},
		{http.StatusInternalServerError, KindProviderUnavailable},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "7")
				}
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			}))
			defer server.Close()

			adapter := NewOpenAIAdapter(Options{APIKey: "sk-test", BaseURL: server.URL})
			ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
			require.NoError(t, err)

			_, final := collect(t, ch)
			require.NotNil(t, final.Err)
			require.Equal(t, tc.want, final.Err.Kind)
			if tc.status == http.StatusTooManyRequests {
				require.Equal(t, 7*time.Second, final.Err.RetryAfter)
			}
		})
	}
}

func TestOpenAI_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(Options{APIKey: "sk-secret", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("openai", "gpt-4o"))
	require.NoError(t, err)
	collect(t, ch)

	require.Equal(t, "Bearer sk-secret", gotAuth)
}

// =============================================================================
// GROQ ALIAS TESTS
// =============================================================================

// TestGroq_ResolvesAliases verifies friendly model names pass validation
// and are rewritten to the full Groq identifier on the wire.
func TestGroq_ResolvesAliases(t *testing.T) {
	var captured chatCompletionRequest
	server := sseCompletionServer(t, []string{"hi"}, &captured)
	defer server.Close()

	adapter := NewGroqAdapter(Options{APIKey: "gsk-test", BaseURL: server.URL})
	ch, err := adapter.Generate(context.Background(), []Message{NewUserMessage("hi")}, testConfig("groq", "mixtral-8x7b"))
	require.NoError(t, err)

	_, final := collect(t, ch)
	require.Nil(t, final.Err)
	require.Equal(t, "mixtral-8x7b-32768", captured.Model)
}

func TestGroq_AdvertisesAliases(t *testing.T) {
	adapter := NewGroqAdapter(Options{})
	desc := adapter.Descriptor()
	require.Equal(t, "groq", desc.ID)
	require.True(t, desc.SupportsModel("mixtral-8x7b"))
	require.True(t, desc.SupportsModel("mixtral-8x7b-32768"))
	require.True(t, desc.SupportsModel("llama-3.1-8b-instant"))
	require.False(t, desc.SupportsModel("gpt-4o"))
}
