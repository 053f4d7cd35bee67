// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"sync"
	"time"

	"llm-playground/internal/chat"
	"llm-playground/internal/provider"
	"llm-playground/internal/registry"
	"llm-playground/internal/session"
)

// chunkBuffer is the buffer size of the chunk channel returned by Send.
const chunkBuffer = 64

// cancelDeliverTimeout bounds how long the cancellation terminal chunk may
// wait for a slow caller before the stream is closed without it.
const cancelDeliverTimeout = time.Second

// =============================================================================
// CHUNK TYPE
// =============================================================================

// Chunk is one unit of streamed output delivered to the caller. The stream
// ends with exactly one chunk where Final is true: Err nil and Canceled
// false means the generation completed, Canceled true means the caller
// cancelled it, and a non-nil Err carries the failure. A caller that stops
// draining a cancelled stream may see the channel close without the
// Canceled marker once the delivery timeout lapses; the session is settled
// either way.
type Chunk struct {
	SessionID string
	Delta     string
	Final     bool
	Canceled  bool
	Err       *provider.Error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator coordinates sessions, the provider registry, and streaming.
// Safe for concurrent use.
type Orchestrator struct {
	registry *registry.Registry
	sessions *session.Manager

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// New creates an orchestrator over the given registry and session manager.
func New(reg *registry.Registry, sessions *session.Manager) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		sessions: sessions,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Send runs one generation turn for a session.
//
// Validation failures (unknown session, busy session, unknown provider,
// unsupported model, bad parameters) are returned synchronously before any
// network call and before the message log is touched; provider and
// transport failures arrive as the terminal chunk. On success the returned
// channel delivers deltas as they arrive and is closed after the terminal
// chunk.
func (o *Orchestrator) Send(ctx context.Context, sessionID, userText string) (<-chan Chunk, error) {
	cfg, status, err := o.sessions.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if status == chat.StatusGenerating {
		return nil, provider.NewError(provider.KindSessionBusy, "a generation is already in flight")
	}

	// Resolve the provider before mutating the session so that a
	// misconfigured session fails with its log unchanged.
	adapter, err := o.registry.Resolve(cfg.Provider)
	if err != nil {
		o.sessions.MarkError(sessionID)
		return nil, err
	}
	if !adapter.Descriptor().SupportsModel(cfg.Model) {
		o.sessions.MarkError(sessionID)
		return nil, provider.NewError(provider.KindUnsupportedModel, cfg.Model+" is not supported by "+cfg.Provider)
	}
	if err := cfg.Validate(); err != nil {
		o.sessions.MarkError(sessionID)
		return nil, err
	}

	genCtx, cancel := context.WithCancel(ctx)

	// BeginGeneration re-checks exclusivity under the manager's lock, so a
	// concurrent Send racing past the snapshot above still loses here.
	history, err := o.sessions.BeginGeneration(sessionID, userText)
	if err != nil {
		cancel()
		return nil, err
	}

	chunks, err := adapter.Generate(genCtx, history, cfg)
	if err != nil {
		o.sessions.FinishGeneration(sessionID, provider.AsError(err))
		cancel()
		return nil, err
	}

	o.mu.Lock()
	o.inflight[sessionID] = cancel
	o.mu.Unlock()

	out := make(chan Chunk, chunkBuffer)
	go o.pump(genCtx, sessionID, chunks, out)
	return out, nil
}

// pump forwards adapter chunks to the caller, folding deltas into the
// session as they arrive. It owns the session's generation lifecycle from
// here: every exit path settles the session before the terminal chunk is
// observable.
func (o *Orchestrator) pump(ctx context.Context, sessionID string, chunks <-chan provider.StreamChunk, out chan<- Chunk) {
	defer close(out)
	defer o.clearInflight(sessionID)

	for {
		select {
		case <-ctx.Done():
			o.sessions.CancelGeneration(sessionID)
			o.deliverCanceled(out, sessionID)
			return

		case chunk, ok := <-chunks:
			if !ok {
				// A cancelled adapter may bail out without a terminal
				// chunk; report that as cancellation, not interruption.
				if ctx.Err() != nil {
					o.sessions.CancelGeneration(sessionID)
					o.deliverCanceled(out, sessionID)
					return
				}
				// The adapter contract requires a terminal chunk before
				// close; treat a bare close as an interrupted stream.
				genErr := provider.NewError(provider.KindStreamInterrupted, "stream ended without terminal chunk")
				o.sessions.FinishGeneration(sessionID, genErr)
				o.forward(ctx, out, Chunk{SessionID: sessionID, Final: true, Err: genErr})
				return
			}

			if chunk.Delta != "" {
				o.sessions.AppendDelta(sessionID, chunk.Delta)
			}

			if !chunk.Final {
				if !o.forward(ctx, out, Chunk{SessionID: sessionID, Delta: chunk.Delta}) {
					o.sessions.CancelGeneration(sessionID)
					o.deliverCanceled(out, sessionID)
					return
				}
				continue
			}

			// Terminal chunk: settle the session first, then let the
			// caller observe completion.
			o.sessions.FinishGeneration(sessionID, chunk.Err)
			o.forward(ctx, out, Chunk{SessionID: sessionID, Delta: chunk.Delta, Final: true, Err: chunk.Err})
			return
		}
	}
}

// deliverCanceled sends the cancellation terminal chunk. The session is
// already settled, so a blocking send is safe; the timeout only protects
// against a caller that abandoned the stream with its buffer full.
func (o *Orchestrator) deliverCanceled(out chan<- Chunk, sessionID string) {
	timer := time.NewTimer(cancelDeliverTimeout)
	defer timer.Stop()
	select {
	case out <- Chunk{SessionID: sessionID, Final: true, Canceled: true}:
	case <-timer.C:
	}
}

// forward delivers a chunk to the caller, giving up on cancellation.
func (o *Orchestrator) forward(ctx context.Context, out chan<- Chunk, chunk Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Cancel stops the in-flight generation on a session, if any. The partial
// assistant content already appended is retained and marked incomplete;
// the session returns to idle before the caller's stream observes the
// terminal chunk. Cancelling a session with nothing in flight is a no-op.
func (o *Orchestrator) Cancel(sessionID string) {
	o.mu.Lock()
	cancel, ok := o.inflight[sessionID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// IsGenerating reports whether a session has a generation in flight.
func (o *Orchestrator) IsGenerating(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[sessionID]
	return ok
}

// clearInflight removes the cancel registration for a finished generation.
func (o *Orchestrator) clearInflight(sessionID string) {
	o.mu.Lock()
	delete(o.inflight, sessionID)
	o.mu.Unlock()
}
