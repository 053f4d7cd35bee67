// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the Anthropic API.
const (
	// DefaultAnthropicURL is the base URL for the Anthropic API.
	DefaultAnthropicURL = "https://api.anthropic.com"

	// anthropicVersion is the required API version header value.
	anthropicVersion = "2023-06-01"
)

// defaultAnthropicModels is the supported model set for the Anthropic adapter.
var defaultAnthropicModels = []string{
	"claude-opus-4-1-20250805",
	"claude-opus-4-20250514",
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// anthropicMessage is one turn in the Anthropic messages payload. The
// messages array only admits user/assistant roles; system content travels
// in a dedicated top-level field.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicRequest is the /v1/messages payload.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
}

// anthropicEvent is the union of SSE event payloads the adapter cares
// about: content_block_delta carries text, message_stop terminates, and
// error events surface mid-stream failures.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// anthropicAdapter implements Adapter for the Anthropic messages API.
type anthropicAdapter struct {
	desc    Descriptor
	apiKey  string
	baseURL string
	limiter *rate.Limiter
}

// NewAnthropicAdapter creates the adapter for the Anthropic API.
func NewAnthropicAdapter(opts Options) Adapter {
	models := opts.Models
	if len(models) == 0 {
		models = defaultAnthropicModels
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}
	return &anthropicAdapter{
		desc: Descriptor{
			ID:                "anthropic",
			DisplayName:       "Anthropic",
			Models:            models,
			SupportsStreaming: true,
		},
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		limiter: opts.newLimiter(),
	}
}

// Descriptor implements Adapter.
func (a *anthropicAdapter) Descriptor() Descriptor {
	return a.desc
}

// buildRequest maps the normalized history to the Anthropic wire shape.
// System messages are lifted out of the array into the system field; when
// several are present their contents are joined in order.
func (a *anthropicAdapter) buildRequest(messages []Message, cfg GenerationConfig) anthropicRequest {
	req := anthropicRequest{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      true,
	}
	var system bytes.Buffer
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	req.System = system.String()
	return req
}

// Generate implements Adapter.
func (a *anthropicAdapter) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	if err := validateGenerate(a.desc, messages, cfg); err != nil {
		return nil, err
	}
	if a.apiKey == "" {
		return failedStream(NewError(KindAuthError, "anthropic API key not configured")), nil
	}

	out := make(chan StreamChunk, chunkBuffer)
	go func() {
		defer close(out)
		a.stream(ctx, out, messages, cfg)
	}()
	return out, nil
}

func (a *anthropicAdapter) stream(ctx context.Context, out chan<- StreamChunk, messages []Message, cfg GenerationConfig) {
	if err := a.limiter.Wait(ctx); err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}

	bodyBytes, err := json.Marshal(a.buildRequest(messages, cfg))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "marshal request", err)})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "create request", err)})
		return
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	logRequest(a.desc.ID, req)
	start := time.Now()
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}
	defer resp.Body.Close()
	logResponse(a.desc.ID, resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		emit(ctx, out, StreamChunk{Final: true, Err: errorFromStatus(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))})
		return
	}

	reader := newSSEReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindStreamInterrupted, "connection dropped mid-stream", err)})
			return
		}

		var event anthropicEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.Type == "" {
			event.Type = eventType
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				if !emit(ctx, out, StreamChunk{Delta: event.Delta.Text}) {
					return
				}
			}
		case "message_stop":
			emit(ctx, out, StreamChunk{Final: true})
			return
		case "error":
			emit(ctx, out, StreamChunk{Final: true, Err: NewError(KindStreamInterrupted, event.Error.Type+": "+event.Error.Message)})
			return
		}
		// ping, message_start, content_block_start/stop, message_delta: ignored.
	}
}
