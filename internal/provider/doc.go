// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider normalizes heterogeneous LLM provider APIs behind a
// single request/response contract.
//
// Each provider (OpenAI, Anthropic, Google Gemini, Groq, Ollama) is wrapped
// in an Adapter that translates the normalized message list and generation
// parameters into the provider's wire shape, and folds the provider's
// response - streamed or not - back into a uniform sequence of StreamChunks
// terminated by exactly one final chunk.
//
// Adapters hold no per-conversation state; every Generate call is
// independent and carries the full message history.
package provider
