// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the collection of conversation sessions: creation,
// switching, deletion, and every mutation of a session's message log and
// status. All access is serialized through the Manager, which is the only
// writer while a generation is in flight.
package session
