// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

// DefaultGroqURL is the base URL for the Groq API. Groq exposes an
// OpenAI-compatible chat completions endpoint, so the adapter reuses the
// openAICompat codec wholesale.
const DefaultGroqURL = "https://api.groq.com/openai/v1"

// defaultGroqModels is the supported model set for the Groq adapter.
var defaultGroqModels = []string{
	"llama-3.1-70b-versatile",
	"llama-3.1-8b-instant",
	"mixtral-8x7b-32768",
	"gemma-7b-it",
}

// groqModelAliases maps friendly names to full Groq model identifiers.
var groqModelAliases = map[string]string{
	"mixtral-8x7b": "mixtral-8x7b-32768",
	"llama-70b":    "llama-3.1-70b-versatile",
	"llama-8b":     "llama-3.1-8b-instant",
}

// NewGroqAdapter creates the adapter for the Groq API.
func NewGroqAdapter(opts Options) Adapter {
	models := opts.Models
	if len(models) == 0 {
		// Friendly aliases are part of the advertised model set so that
		// model validation accepts them before the adapter resolves them.
		models = make([]string, 0, len(defaultGroqModels)+len(groqModelAliases))
		models = append(models, defaultGroqModels...)
		for _, alias := range []string{"llama-70b", "llama-8b", "mixtral-8x7b"} {
			models = append(models, alias)
		}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultGroqURL
	}
	return &openAICompat{
		desc: Descriptor{
			ID:                "groq",
			DisplayName:       "Groq",
			Models:            models,
			SupportsStreaming: true,
		},
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		aliases: groqModelAliases,
		limiter: opts.newLimiter(),
	}
}
