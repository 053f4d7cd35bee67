// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"llm-playground/internal/chat"
	"llm-playground/internal/config"
)

// dispatch routes one slash command. It returns false when the REPL should
// exit.
func (r *REPL) dispatch(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/h":
		r.printHelp()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		return true, r.cmdNew(args)

	case "/switch", "/sw":
		return true, r.cmdSwitch(args)

	case "/list", "/ls":
		r.cmdList()
		return true, nil

	case "/delete", "/del":
		return true, r.cmdDelete(args)

	case "/provider", "/p":
		return true, r.cmdProvider(args)

	case "/model", "/m":
		return true, r.cmdModel(args)

	case "/temp", "/t":
		return true, r.cmdTemp(args)

	case "/tokens":
		return true, r.cmdTokens(args)

	case "/clear", "/c":
		return true, r.cmdClear()

	case "/history":
		return true, r.cmdHistory()

	case "/providers":
		r.cmdProviders()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func (r *REPL) printHelp() {
	titleStyle.Println("Commands")
	help := [][2]string{
		{"/new [provider [model]]", "create a session and switch to it"},
		{"/switch <n|id>", "switch the active session"},
		{"/list", "list sessions"},
		{"/delete [n|id]", "delete a session (default: active)"},
		{"/provider <id> [model]", "change the active session's provider"},
		{"/model <name>", "change the active session's model"},
		{"/temp <0..2>", "change the sampling temperature"},
		{"/tokens <n>", "change the response token cap"},
		{"/clear", "clear the active session's history"},
		{"/history", "show the active session's transcript"},
		{"/providers", "show provider configuration status"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		labelStyle.Printf("  %-26s", h[0])
		fmt.Println(h[1])
	}
}

// cmdNew creates a session. With no arguments it uses the configured
// defaults; with a provider (and optionally a model) it uses that
// provider's defaults.
func (r *REPL) cmdNew(args []string) error {
	cfg := r.cfg.DefaultGenerationConfig()
	if len(args) > 0 {
		cfg.Provider = args[0]
		cfg.Model = config.DefaultModels[args[0]]
	}
	if len(args) > 1 {
		cfg.Model = args[1]
	}
	if cfg.Model == "" {
		return fmt.Errorf("no default model for provider %s; pass one: /new %s <model>", cfg.Provider, cfg.Provider)
	}

	id, err := r.sessions.Create(cfg)
	if err != nil {
		return err
	}
	okStyle.Printf("created session %s", id)
	infoStyle.Printf(" (%s/%s)\n", cfg.Provider, cfg.Model)
	return nil
}

// resolveSessionArg maps a list position (1-based) or a session id to a
// session id.
func (r *REPL) resolveSessionArg(arg string) (string, error) {
	metas := r.sessions.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(metas) {
			return "", fmt.Errorf("no session #%d", n)
		}
		return metas[n-1].ID, nil
	}
	return arg, nil
}

func (r *REPL) cmdSwitch(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /switch <n|id>")
	}
	id, err := r.resolveSessionArg(args[0])
	if err != nil {
		return err
	}
	if err := r.sessions.SwitchTo(id); err != nil {
		return err
	}
	okStyle.Printf("switched to %s\n", id)
	return nil
}

func (r *REPL) cmdList() {
	metas := r.sessions.List()
	if len(metas) == 0 {
		infoStyle.Println("no sessions")
		return
	}
	active := r.sessions.ActiveID()
	for i, meta := range metas {
		marker := " "
		if meta.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %d. ", marker, i+1)
		labelStyle.Print(meta.Title)
		infoStyle.Printf("  %s/%s  %d msgs  %s  %s\n",
			meta.Config.Provider, meta.Config.Model, meta.MessageCount,
			meta.Status, meta.ID)
	}
}

func (r *REPL) cmdDelete(args []string) error {
	id := r.sessions.ActiveID()
	if len(args) > 0 {
		var err error
		if id, err = r.resolveSessionArg(args[0]); err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("no session to delete")
	}
	if err := r.sessions.Delete(id); err != nil {
		return err
	}
	okStyle.Printf("deleted %s\n", id)
	return nil
}

// cmdProvider switches the active session to another provider. Without an
// explicit model the provider's default model is used.
func (r *REPL) cmdProvider(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: /provider <id> [model]")
	}
	id := r.sessions.ActiveID()
	cfg, _, err := r.sessions.Snapshot(id)
	if err != nil {
		return err
	}
	if _, err := r.registry.Resolve(args[0]); err != nil {
		return err
	}

	cfg.Provider = args[0]
	if len(args) > 1 {
		cfg.Model = args[1]
	} else {
		cfg.Model = config.DefaultModels[args[0]]
		if cfg.Model == "" {
			return fmt.Errorf("no default model for %s; pass one: /provider %s <model>", args[0], args[0])
		}
	}
	if err := r.sessions.UpdateConfig(id, cfg); err != nil {
		return err
	}
	okStyle.Printf("now using %s/%s\n", cfg.Provider, cfg.Model)
	return nil
}

func (r *REPL) cmdModel(args []string) error {
	id := r.sessions.ActiveID()
	cfg, _, err := r.sessions.Snapshot(id)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Printf("%s/%s\n", cfg.Provider, cfg.Model)
		if models, err := r.registry.ListModels(cfg.Provider); err == nil && len(models) > 0 {
			infoStyle.Printf("available: %s\n", strings.Join(models, ", "))
		}
		return nil
	}
	cfg.Model = args[0]
	if err := r.sessions.UpdateConfig(id, cfg); err != nil {
		return err
	}
	okStyle.Printf("model set to %s\n", cfg.Model)
	return nil
}

func (r *REPL) cmdTemp(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /temp <0..2>")
	}
	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", args[0])
	}
	id := r.sessions.ActiveID()
	cfg, _, err := r.sessions.Snapshot(id)
	if err != nil {
		return err
	}
	cfg.Temperature = t
	if err := r.sessions.UpdateConfig(id, cfg); err != nil {
		return err
	}
	okStyle.Printf("temperature set to %.2f\n", t)
	return nil
}

func (r *REPL) cmdTokens(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /tokens <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("not a number: %s", args[0])
	}
	id := r.sessions.ActiveID()
	cfg, _, err := r.sessions.Snapshot(id)
	if err != nil {
		return err
	}
	cfg.MaxTokens = n
	if err := r.sessions.UpdateConfig(id, cfg); err != nil {
		return err
	}
	okStyle.Printf("max tokens set to %d\n", n)
	return nil
}

func (r *REPL) cmdClear() error {
	id := r.sessions.ActiveID()
	if err := r.sessions.ClearHistory(id); err != nil {
		return err
	}
	okStyle.Println("history cleared")
	return nil
}

func (r *REPL) cmdHistory() error {
	id := r.sessions.ActiveID()
	entries, err := r.sessions.Transcript(id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		infoStyle.Println("no messages yet")
		return nil
	}
	for _, e := range entries {
		switch e.Role {
		case chat.RoleUser:
			userStyle.Print("you> ")
		case chat.RoleAssistant:
			botStyle.Print("assistant> ")
		default:
			labelStyle.Print("system> ")
		}
		fmt.Print(e.Content)
		if e.Incomplete {
			warningStyle.Print(" [incomplete]")
		}
		fmt.Println()
	}
	return nil
}

func (r *REPL) cmdProviders() {
	for _, st := range r.registry.Status() {
		labelStyle.Printf("  %-12s", st.ID)
		fmt.Printf("%-18s", st.DisplayName)
		if st.Configured {
			okStyle.Println("ready")
		} else {
			warningStyle.Println("no API key")
		}
	}
}
