// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sync"

	"llm-playground/internal/config"
	"llm-playground/internal/provider"
)

// builders is the static table of known providers. Adding a provider means
// adding a row here; there is no dynamic registration.
var builders = []struct {
	id    string
	build func(provider.Options) provider.Adapter
}{
	{"openai", provider.NewOpenAIAdapter},
	{"anthropic", provider.NewAnthropicAdapter},
	{"google", provider.NewGoogleAdapter},
	{"groq", provider.NewGroqAdapter},
	{"ollama", provider.NewOllamaAdapter},
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry resolves provider identifiers to adapters. Read-only after
// construction, so it is safe for concurrent use without locking.
type Registry struct {
	adapters   map[string]provider.Adapter
	order      []string
	configured map[string]bool
}

// New builds a registry from the configuration. Every entry in the static
// table registers regardless of whether its credential is present.
func New(cfg *config.Config) *Registry {
	r := &Registry{
		adapters:   make(map[string]provider.Adapter),
		configured: make(map[string]bool),
	}
	for _, b := range builders {
		pc := cfg.Provider(b.id)
		opts := provider.Options{
			APIKey:            pc.APIKey(),
			BaseURL:           pc.BaseURL,
			Models:            pc.Models,
			Timeout:           pc.Timeout(),
			RequestsPerSecond: pc.RequestsPerSecond,
		}
		r.adapters[b.id] = b.build(opts)
		r.order = append(r.order, b.id)
		// Local providers need no credential.
		r.configured[b.id] = opts.APIKey != "" || pc.APIKeyEnv == ""
	}
	return r
}

// Resolve returns the adapter for a provider id.
func (r *Registry) Resolve(providerID string) (provider.Adapter, error) {
	a, ok := r.adapters[providerID]
	if !ok {
		return nil, provider.NewError(provider.KindUnknownProvider, "no provider registered as "+providerID)
	}
	return a, nil
}

// ListModels returns the supported model set for a provider id. An empty
// set means the provider accepts any model.
func (r *Registry) ListModels(providerID string) ([]string, error) {
	a, err := r.Resolve(providerID)
	if err != nil {
		return nil, err
	}
	return a.Descriptor().Models, nil
}

// Descriptors returns the descriptors of all registered providers in
// registration order.
func (r *Registry) Descriptors() []provider.Descriptor {
	descs := make([]provider.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		descs = append(descs, r.adapters[id].Descriptor())
	}
	return descs
}

// ProviderStatus reports whether a provider has a credential configured.
type ProviderStatus struct {
	ID          string
	DisplayName string
	Configured  bool
}

// Status reports the configuration state of every registered provider.
func (r *Registry) Status() []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(r.order))
	for _, id := range r.order {
		statuses = append(statuses, ProviderStatus{
			ID:          id,
			DisplayName: r.adapters[id].Descriptor().DisplayName,
			Configured:  r.configured[id],
		})
	}
	return statuses
}

// =============================================================================
// PROCESS-WIDE REGISTRY
// =============================================================================

var (
	defaultRegistry *Registry
	initOnce        sync.Once
)

// Init constructs the process-wide registry. The first call wins;
// subsequent calls return the already-built registry. There is no teardown.
func Init(cfg *config.Config) *Registry {
	initOnce.Do(func() {
		defaultRegistry = New(cfg)
	})
	return defaultRegistry
}

// Default returns the process-wide registry, or nil before Init.
func Default() *Registry {
	return defaultRegistry
}
