// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry maps provider identifiers to their adapters and model
// capabilities. The registry is built once at process start from a static
// table and is read-only thereafter.
//
// Registration is independent of credential presence: a provider with no
// API key still registers, and the missing credential surfaces as an
// AuthError only when that provider is actually used.
package registry
