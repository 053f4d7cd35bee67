// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive playground REPL.
//
// The REPL reads lines with readline-style editing and history, routes
// slash commands to session management, and streams everything else to the
// active session's provider. Ctrl+C during a generation cancels it and
// keeps the partial response; Ctrl+D exits.
package cli
