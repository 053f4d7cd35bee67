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

// DefaultGoogleURL is the base URL for the Google Gemini API.
const DefaultGoogleURL = "https://generativelanguage.googleapis.com"

// defaultGoogleModels is the supported model set for the Google adapter.
var defaultGoogleModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// geminiRequest is the generateContent payload. Gemini names roles
// differently (assistant -> "model") and carries the system prompt in a
// dedicated systemInstruction field.
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// =============================================================================
// ADAPTER
// =============================================================================

// googleAdapter implements Adapter for the Google Gemini API.
//
// The adapter issues a non-streaming generateContent call and synthesizes
// the chunk sequence from the complete response: one delta carrying the
// whole reply, then the final chunk.
type googleAdapter struct {
	desc    Descriptor
	apiKey  string
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGoogleAdapter creates the adapter for the Google Gemini API.
func NewGoogleAdapter(opts Options) Adapter {
	models := opts.Models
	if len(models) == 0 {
		models = defaultGoogleModels
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	return &googleAdapter{
		desc: Descriptor{
			ID:                "google",
			DisplayName:       "Google",
			Models:            models,
			SupportsStreaming: false,
		},
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		timeout: opts.timeoutOrDefault(),
		limiter: opts.newLimiter(),
	}
}

// Descriptor implements Adapter.
func (a *googleAdapter) Descriptor() Descriptor {
	return a.desc
}

// buildRequest maps the normalized history to the Gemini wire shape.
func (a *googleAdapter) buildRequest(messages []Message, cfg GenerationConfig) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			// Several system messages accumulate as parts, in order.
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, geminiPart{Text: msg.Content})
			continue
		}
		role := string(msg.Role)
		if msg.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	return req
}

// Generate implements Adapter.
func (a *googleAdapter) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	if err := validateGenerate(a.desc, messages, cfg); err != nil {
		return nil, err
	}
	if a.apiKey == "" {
		return failedStream(NewError(KindAuthError, "google API key not configured")), nil
	}

	out := make(chan StreamChunk, chunkBuffer)
	go func() {
		defer close(out)
		a.complete(ctx, out, messages, cfg)
	}()
	return out, nil
}

// complete runs the non-streaming call and synthesizes the chunk sequence.
func (a *googleAdapter) complete(ctx context.Context, out chan<- StreamChunk, messages []Message, cfg GenerationConfig) {
	if err := a.limiter.Wait(ctx); err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}

	bodyBytes, err := json.Marshal(a.buildRequest(messages, cfg))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "marshal request", err)})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := a.baseURL + "/v1beta/models/" + cfg.Model + ":generateContent"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindInvalidRequest, "create request", err)})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", a.apiKey)

	logRequest(a.desc.ID, req)
	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: AsError(err)})
		return
	}
	defer resp.Body.Close()
	logResponse(a.desc.ID, resp, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindProviderUnavailable, "read response", err)})
		return
	}

	if resp.StatusCode != http.StatusOK {
		emit(ctx, out, StreamChunk{Final: true, Err: errorFromStatus(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))})
		return
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		emit(ctx, out, StreamChunk{Final: true, Err: WrapError(KindProviderUnavailable, "parse response", err)})
		return
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		emit(ctx, out, StreamChunk{Final: true, Err: NewError(KindProviderUnavailable, "no content in response")})
		return
	}

	var text bytes.Buffer
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if !emit(ctx, out, StreamChunk{Delta: text.String()}) {
		return
	}
	emit(ctx, out, StreamChunk{Final: true})
}
