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

// DefaultOpenAIURL is the base URL for the OpenAI chat completions API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// defaultOpenAIModels is the supported model set for the OpenAI adapter.
var defaultOpenAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-3.5-turbo",
}

// =============================================================================
// OPENAI-COMPATIBLE WIRE TYPES
// =============================================================================

// chatCompletionRequest is the OpenAI-compatible chat completions payload.
// Groq exposes the same shape, so both adapters share this codec.
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatCompletionChunk is one SSE data payload from a streaming completion.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *chatCompletionChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

func (c *chatCompletionChunk) done() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// =============================================================================
// OPENAI-COMPATIBLE ADAPTER
// =============================================================================

// openAICompat implements Adapter for providers speaking the OpenAI chat
// completions protocol with SSE streaming. OpenAI and Groq differ only in
// endpoint, credential, and model set.
type openAICompat struct {
	desc    Descriptor
	apiKey  string
	baseURL string
	aliases map[string]string
	limiter *rate.Limiter
}

// NewOpenAIAdapter creates the adapter for the OpenAI API.
func NewOpenAIAdapter(opts Options) Adapter {
	models := opts.Models
	if len(models) == 0 {
		models = defaultOpenAIModels
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	return &openAICompat{
		desc: Descriptor{
			ID:                "openai",
			DisplayName:       "OpenAI",
			Models:            models,
			SupportsStreaming: true,
		},
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		limiter: opts.newLimiter(),
	}
}

// Descriptor implements Adapter.
func (a *openAICompat) Descriptor() Descriptor {
	return a.desc
}

// resolveModel maps a friendly alias to its full model identifier.
func (a *openAICompat) resolveModel(model string) string {
	if full, ok := a.aliases[model]; ok {
		return full
	}
	return model
}

// Generate implements Adapter. It issues one streaming chat completions
// request and converts the SSE delta stream into StreamChunks.
func (a *openAICompat) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	cfg.Model = a.resolveModel(cfg.Model)
	if err := validateGenerate(a.desc, messages, cfg); err != nil {
		return nil, err
	}
	if a.apiKey == "" {
		return failedStream(NewError(KindAuthError, a.desc.ID+" API key not configured")), nil
	}

	out := make(chan StreamChunk, chunkBuffer)
	go func() {
		defer close(out)
		a.stream(ctx, out, messages, cfg)
	}()
	return out, nil
}

// stream runs the request and delivers chunks until the terminal chunk.
func (a *openAICompat) stream(ctx context.Context, out chan<- StreamChunk, messages []Message, cfg GenerationConfig) {
	if err := a.limiter.Wait(ctx); err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}

	reqBody := chatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "marshal request", err)})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "create request", err)})
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

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

		_, data, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// EOF without a [DONE] terminator means the connection dropped.
			emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindStreamInterrupted, "connection dropped mid-stream", err)})
			return
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			emit(ctx, out, StreamChunk{Final: true})
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed events rather than aborting the stream.
			continue
		}

		if content := chunk.content(); content != "" {
			if !emit(ctx, out, StreamChunk{Delta: content}) {
				return
			}
		}
		if chunk.done() {
			emit(ctx, out, StreamChunk{Final: true})
			return
		}
	}
}
