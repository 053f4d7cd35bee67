// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants shared by all adapters.
const (
	// DefaultTimeout is the default deadline for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// chunkBuffer is the buffer size of the chunk channel returned by Generate.
	chunkBuffer = 64

	// MaxResponseSize is the maximum allowed non-streaming response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

var (
	// Shared HTTP client with connection pooling for non-streaming requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests (no timeout,
	// lifetime is controlled via the request context).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// NORMALIZED TYPES
// =============================================================================

// Role identifies the sender of a normalized message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single normalized conversation message as sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a normalized user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a normalized assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a normalized system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// GenerationConfig holds the generation parameters attached to a session.
type GenerationConfig struct {
	Provider    string  `json:"provider" toml:"provider"`
	Model       string  `json:"model" toml:"model"`
	Temperature float64 `json:"temperature" toml:"temperature"`
	MaxTokens   int     `json:"max_tokens" toml:"max_tokens"`
}

// Validate checks parameter bounds: temperature in [0, 2] and a positive
// token limit. Provider and model existence is checked by the registry and
// the adapter, not here.
func (c GenerationConfig) Validate() error {
	if c.Provider == "" {
		return NewError(KindInvalidRequest, "provider must not be empty")
	}
	if c.Model == "" {
		return NewError(KindInvalidRequest, "model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewError(KindInvalidRequest, "temperature must be in [0.0, 2.0]")
	}
	if c.MaxTokens <= 0 {
		return NewError(KindInvalidRequest, "max_tokens must be positive")
	}
	return nil
}

// StreamChunk is one incremental unit of generated output.
//
// A Generate stream contains zero or more non-final chunks carrying delta
// text, followed by exactly one final chunk. A final chunk with a nil Err
// means the generation completed; a non-nil Err means it failed, and any
// deltas already delivered are the partial content.
type StreamChunk struct {
	Delta string
	Final bool
	Err   *Error
}

// Descriptor describes a registered provider.
type Descriptor struct {
	ID          string
	DisplayName string
	// Models is the supported model set. Empty means the adapter accepts
	// any model id (local runtimes with user-managed model libraries).
	Models            []string
	SupportsStreaming bool
}

// SupportsModel reports whether the descriptor's model set admits model.
func (d Descriptor) SupportsModel(model string) bool {
	if len(d.Models) == 0 {
		return true
	}
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Adapter is the capability interface every provider implements.
//
// Generate issues one network call carrying the full message history and
// returns a finite, non-restartable chunk stream. The returned channel is
// always closed after the final chunk. Synchronous errors are returned only
// for validation failures detected before any network work (unsupported
// model, malformed parameters); provider and transport failures arrive as
// the terminal chunk so the consumer can distinguish "done" from "failed".
type Adapter interface {
	Descriptor() Descriptor
	Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error)
}

// Options configures an adapter at construction time.
type Options struct {
	// APIKey is the provider credential. May be empty; the adapter then
	// fails with AuthError on first use rather than at registration.
	APIKey string

	// BaseURL overrides the provider's default endpoint (primarily tests).
	BaseURL string

	// Models overrides the default supported model set.
	Models []string

	// Timeout is the per-request deadline for non-streaming calls.
	Timeout time.Duration

	// RequestsPerSecond caps the client-side request rate. Zero disables
	// pacing.
	RequestsPerSecond float64
}

// newLimiter builds the client-side pacer from Options.
func (o Options) newLimiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), 1)
}

// timeoutOrDefault returns the configured timeout or the shared default.
func (o Options) timeoutOrDefault() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// =============================================================================
// VALIDATION AND LOGGING HELPERS
// =============================================================================

// validateGenerate performs the synchronous checks shared by all adapters.
func validateGenerate(d Descriptor, messages []Message, cfg GenerationConfig) error {
	if len(messages) == 0 {
		return NewError(KindInvalidRequest, "messages must not be empty")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !d.SupportsModel(cfg.Model) {
		return NewError(KindUnsupportedModel, cfg.Model+" is not supported by "+d.ID)
	}
	return nil
}

// logRequest logs an outgoing API request without exposing sensitive data.
// Headers (auth) and bodies (conversation content) are never logged.
func logRequest(provider string, req *http.Request) {
	log.Printf("%s request: %s %s", provider, req.Method, req.URL.Path)
}

// logResponse logs an API response status and duration, never the body.
func logResponse(provider string, resp *http.Response, duration time.Duration) {
	log.Printf("%s response: %d (%v)", provider, resp.StatusCode, duration)
}

// failedStream returns a closed single-chunk stream carrying a terminal
// error. Used for failures that occur after Generate has committed to
// delivering results through the channel (missing credentials, transport
// errors on connect).
func failedStream(err *Error) <-chan StreamChunk {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Final: true, Err: err}
	close(ch)
	return ch
}

// emit sends a chunk unless the context is already cancelled.
// Returns false when the consumer is gone.
func emit(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
