// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/fatih/color"

// Shared color styles for all REPL output. The color package disables
// itself for non-TTY output and respects NO_COLOR.
var (
	promptStyle  = color.New(color.FgCyan, color.Bold)
	titleStyle   = color.New(color.FgMagenta, color.Bold)
	infoStyle    = color.New(color.FgHiBlack)
	labelStyle   = color.New(color.FgWhite, color.Bold)
	userStyle    = color.New(color.FgGreen, color.Bold)
	botStyle     = color.New(color.FgBlue, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgYellow)
	okStyle      = color.New(color.FgGreen)
)
