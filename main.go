// llm-playground - an interactive multi-provider chat playground.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"llm-playground/internal/cli"
	"llm-playground/internal/config"
	"llm-playground/internal/orchestrator"
	"llm-playground/internal/registry"
	"llm-playground/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "llm-playground:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load API keys from a local .env if present; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reg := registry.Init(cfg)
	sessions := session.NewManager()
	orch := orchestrator.New(reg, sessions)

	repl := cli.New(cfg, reg, sessions, orch)
	return repl.Run(context.Background())
}
