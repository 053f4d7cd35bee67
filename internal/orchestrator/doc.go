// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives a generation turn: it resolves the session's
// provider, streams chunks from the adapter into the session's in-progress
// assistant message, and re-emits them to the caller.
//
// Each Send runs as an independent goroutine per session. Sessions never
// contend with each other; a second Send on the same session is rejected
// synchronously with SessionBusy rather than queued. Cancellation is
// cooperative: the session is guaranteed to be back at idle before the
// caller observes the terminal chunk.
package orchestrator
