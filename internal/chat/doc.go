// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat contains the data structures for conversation sessions and
// messages: an append-only message log, the generation parameters attached
// to it, and the per-session status state machine.
//
// A Session is not safe for concurrent use on its own; the session manager
// serializes all access.
package chat
