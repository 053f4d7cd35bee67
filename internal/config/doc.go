// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the playground.
//
// Configuration sources, in order of precedence:
//   - Environment variable overrides (LLM_PLAYGROUND_*)
//   - ~/.llm-playground/config.toml
//   - Built-in defaults
//
// API keys are never stored in the config file; each provider section
// names the environment variable the key is read from.
package config
