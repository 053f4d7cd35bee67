// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultOllamaURL is the base URL for a local Ollama server.
// Uses an explicit IPv4 address instead of localhost to avoid IPv6
// resolution issues on Windows.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// =============================================================================
// WIRE TYPES
// =============================================================================

// ollamaRequest is the /api/chat payload. Generation parameters ride in the
// options object rather than top-level fields.
type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaChunk is one NDJSON line of the streaming chat response.
type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// ollamaAdapter implements Adapter for a local Ollama server. Ollama
// requires no credential and streams newline-delimited JSON rather than SSE.
//
// The supported model set is left open: which models exist is a property of
// the local model library, and Ollama reports unknown models itself.
type ollamaAdapter struct {
	desc    Descriptor
	baseURL string
	limiter *rate.Limiter
}

// NewOllamaAdapter creates the adapter for a local Ollama server.
func NewOllamaAdapter(opts Options) Adapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &ollamaAdapter{
		desc: Descriptor{
			ID:                "ollama",
			DisplayName:       "Ollama (local)",
			Models:            opts.Models,
			SupportsStreaming: true,
		},
		baseURL: baseURL,
		limiter: opts.newLimiter(),
	}
}

// Descriptor implements Adapter.
func (a *ollamaAdapter) Descriptor() Descriptor {
	return a.desc
}

// Generate implements Adapter.
func (a *ollamaAdapter) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	if err := validateGenerate(a.desc, messages, cfg); err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, chunkBuffer)
	go func() {
		defer close(out)
		a.stream(ctx, out, messages, cfg)
	}()
	return out, nil
}

func (a *ollamaAdapter) stream(ctx context.Context, out chan<- StreamChunk, messages []Message, cfg GenerationConfig) {
	if err := a.limiter.Wait(ctx); err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}

	reqBody := ollamaRequest{
		Model:    cfg.Model,
		Messages: messages,
		Stream:   true,
		Options: ollamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "marshal request", err)})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "create request", err)})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	logRequest(a.desc.ID, req)
	start := time.Now()
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindProviderUnavailable, "Ollama is not reachable", err)})
		return
	}
	defer resp.Body.Close()
	logResponse(a.desc.ID, resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		emit(ctx, out, StreamChunk{Final: true, Err: errorFromStatus(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))})
		return
	}

	reader := bufio.NewReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == io.EOF && len(bytes.TrimSpace(line)) == 0 {
				// Stream ended without a done marker.
				emit(ctx, out, StreamChunk{Final: true, Err: NewError(KindStreamInterrupted, "stream ended without done marker")})
				return
			}
			if err != io.EOF {
				emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindStreamInterrupted, "connection dropped mid-stream", err)})
				return
			}
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Skip malformed lines.
			continue
		}

		if chunk.Message.Content != "" {
			if !emit(ctx, out, StreamChunk{Delta: chunk.Message.Content}) {
				return
			}
		}
		if chunk.Done {
			emit(ctx, out, StreamChunk{Final: true})
			return
		}
	}
}
