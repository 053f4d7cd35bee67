// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"llm-playground/internal/config"
	"llm-playground/internal/orchestrator"
	"llm-playground/internal/registry"
	"llm-playground/internal/session"
)

// historyFileName is the liner history file under the config directory.
const historyFileName = "history"

// REPL is the interactive playground shell.
type REPL struct {
	cfg      *config.Config
	registry *registry.Registry
	sessions *session.Manager
	orch     *orchestrator.Orchestrator

	line        *liner.State
	historyFile string
}

// New creates a REPL over the given components.
func New(cfg *config.Config, reg *registry.Registry, sessions *session.Manager, orch *orchestrator.Orchestrator) *REPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if path, err := config.ConfigPath(); err == nil {
		historyFile = filepath.Join(filepath.Dir(path), historyFileName)
	}

	r := &REPL{
		cfg:         cfg,
		registry:    reg,
		sessions:    sessions,
		orch:        orch,
		line:        line,
		historyFile: historyFile,
	}
	r.loadHistory()
	return r
}

// Close saves input history and restores the terminal.
func (r *REPL) Close() {
	r.saveHistory()
	r.line.Close()
}

func (r *REPL) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveHistory() {
	if r.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

// readInput reads one line with history support.
func (r *REPL) readInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Run starts the REPL and blocks until the user exits.
func (r *REPL) Run(ctx context.Context) error {
	defer r.Close()

	// The first session is created up front so plain input works
	// immediately.
	if _, err := r.sessions.Create(r.cfg.DefaultGenerationConfig()); err != nil {
		return err
	}

	r.printWelcome()

	// Ctrl+C while a generation streams cancels that generation; at the
	// prompt, liner reports it as ErrPromptAborted and the loop continues.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if id := r.sessions.ActiveID(); id != "" {
				r.orch.Cancel(id)
			}
		}
	}()

	for {
		input, err := r.readInput(promptStyle.Sprint("you> "))
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println()
				continue
			}
			// Ctrl+D or terminal gone.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.dispatch(input)
			if err != nil {
				errorStyle.Fprint(os.Stderr, "[error] ")
				fmt.Fprintln(os.Stderr, err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := r.send(ctx, input); err != nil {
			errorStyle.Fprint(os.Stderr, "[error] ")
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// send streams one generation turn on the active session, printing deltas
// as they arrive.
func (r *REPL) send(ctx context.Context, text string) error {
	id := r.sessions.ActiveID()
	if id == "" {
		return fmt.Errorf("no active session; use /new")
	}

	chunks, err := r.orch.Send(ctx, id, text)
	if err != nil {
		return err
	}

	cfg, _, _ := r.sessions.Snapshot(id)
	botStyle.Printf("%s> ", cfg.Provider)

	for chunk := range chunks {
		if chunk.Delta != "" {
			fmt.Print(chunk.Delta)
		}
		if !chunk.Final {
			continue
		}
		fmt.Println()
		if chunk.Canceled {
			warningStyle.Println("[cancelled]")
		} else if chunk.Err != nil {
			errorStyle.Fprint(os.Stderr, "[error] ")
			fmt.Fprintln(os.Stderr, chunk.Err)
		}
	}
	return nil
}

func (r *REPL) printWelcome() {
	titleStyle.Println("llm-playground")
	cfg := r.cfg.DefaultGenerationConfig()
	infoStyle.Printf("provider %s, model %s, temperature %.1f, max tokens %d\n",
		cfg.Provider, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	infoStyle.Println("Type /help for commands, Ctrl+C to cancel a response, Ctrl+D to exit.")
	fmt.Println()
}
