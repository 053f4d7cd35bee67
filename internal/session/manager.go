// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"llm-playground/internal/chat"
	"llm-playground/internal/provider"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns every conversation session. Sessions live only in process
// memory for the process lifetime; there is no cross-process persistence.
//
// The Manager is safe for concurrent use. Different sessions never contend
// beyond the duration of a map operation; a single session admits at most
// one in-flight generation, enforced here.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session
	order    []string // creation order, for stable listing
	activeID string
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*chat.Session),
	}
}

// get looks up a session; callers must hold mu.
func (m *Manager) get(id string) (*chat.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, provider.NewError(provider.KindUnknownSession, "no session with id "+id)
	}
	return s, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create allocates a new session with an empty message log and the given
// generation parameters, makes it active, and returns its id.
func (m *Manager) Create(cfg provider.GenerationConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := chat.NewSession(cfg)
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.activeID = s.ID
	return s.ID, nil
}

// SwitchTo changes which session is active for subsequent calls that use
// the active session.
func (m *Manager) SwitchTo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.get(id); err != nil {
		return err
	}
	m.activeID = id
	return nil
}

// ActiveID returns the id of the active session, or empty if none exists.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Delete removes a session. A generating session cannot be deleted; it must
// be cancelled first.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return err
	}
	if s.Status == chat.StatusGenerating {
		return provider.NewError(provider.KindSessionBusy, "cannot delete a generating session")
	}

	delete(m.sessions, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.activeID == id {
		m.activeID = ""
		if len(m.order) > 0 {
			m.activeID = m.order[len(m.order)-1]
		}
	}
	return nil
}

// List returns metadata for all sessions in creation order.
func (m *Manager) List() []chat.Meta {
	m.mu.Lock()
	defer m.mu.Unlock()

	metas := make([]chat.Meta, 0, len(m.order))
	for _, id := range m.order {
		metas = append(metas, m.sessions[id].GetMeta())
	}
	return metas
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Snapshot returns a session's generation config and status.
func (m *Manager) Snapshot(id string) (provider.GenerationConfig, chat.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return provider.GenerationConfig{}, 0, err
	}
	return s.Config, s.Status, nil
}

// UpdateConfig replaces a session's generation parameters. Rejected while a
// generation is in flight; parameters are immutable during generation.
func (m *Manager) UpdateConfig(id string, cfg provider.GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return err
	}
	if s.Status == chat.StatusGenerating {
		return provider.NewError(provider.KindSessionBusy, "cannot update config while generating")
	}
	s.Config = cfg
	s.UpdatedAt = time.Now()
	return nil
}

// AppendUserMessage appends a user message to an idle or errored session.
// A successful append returns an errored session to idle.
func (m *Manager) AppendUserMessage(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return err
	}
	if s.Status == chat.StatusGenerating {
		return provider.NewError(provider.KindSessionBusy, "cannot append while generating")
	}
	s.AppendUserMessage(text)
	return nil
}

// ClearHistory removes all messages from a session.
func (m *Manager) ClearHistory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return err
	}
	if s.Status == chat.StatusGenerating {
		return provider.NewError(provider.KindSessionBusy, "cannot clear history while generating")
	}
	s.ClearHistory()
	return nil
}

// TranscriptEntry is a read-only copy of one message for display.
type TranscriptEntry struct {
	Role       chat.Role
	Content    string
	Incomplete bool
	Timestamp  time.Time
}

// Transcript returns a read-only copy of a session's message log.
func (m *Manager) Transcript(id string) ([]TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	entries := make([]TranscriptEntry, 0, len(s.Messages))
	for _, msg := range s.Messages {
		entries = append(entries, TranscriptEntry{
			Role:       msg.Role,
			Content:    msg.DisplayContent(),
			Incomplete: msg.Incomplete,
			Timestamp:  msg.Timestamp,
		})
	}
	return entries, nil
}

// =============================================================================
// GENERATION HOOKS
// =============================================================================
//
// These are used exclusively by the orchestrator, which is the single
// writer for a session while it is generating.

// BeginGeneration atomically validates that the session is free, appends
// the user message, appends the empty assistant placeholder, and moves the
// session to generating. It returns the normalized history to send to the
// provider, excluding the placeholder.
func (m *Manager) BeginGeneration(id, userText string) ([]provider.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if s.Status == chat.StatusGenerating {
		return nil, provider.NewError(provider.KindSessionBusy, "a generation is already in flight")
	}

	s.AppendUserMessage(userText)
	history := s.History()
	s.AppendMessage(chat.NewAssistantPlaceholder())
	s.Status = chat.StatusGenerating
	return history, nil
}

// AppendDelta folds one streamed delta into the in-progress assistant
// message. A no-op if the session is gone or not generating.
func (m *Manager) AppendDelta(id, delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status != chat.StatusGenerating {
		return
	}
	if last := s.LastMessage(); last != nil {
		last.AppendDelta(delta)
	}
	s.UpdatedAt = time.Now()
}

// FinishGeneration finalizes the in-progress assistant message and settles
// the session: idle on success, error on failure. Partial content is
// retained either way.
func (m *Manager) FinishGeneration(id string, genErr *provider.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status != chat.StatusGenerating {
		return
	}
	if last := s.LastMessage(); last != nil {
		last.Finalize(genErr != nil)
	}
	if genErr != nil {
		s.Status = chat.StatusError
	} else {
		s.Status = chat.StatusIdle
	}
	s.UpdatedAt = time.Now()
}

// CancelGeneration finalizes the in-progress assistant message with its
// partial content, marks it incomplete, and returns the session to idle.
func (m *Manager) CancelGeneration(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status != chat.StatusGenerating {
		return
	}
	if last := s.LastMessage(); last != nil {
		last.Finalize(true)
	}
	s.Status = chat.StatusIdle
	s.UpdatedAt = time.Now()
}

// MarkError moves a session to the error state without touching its log.
// Used when provider/model resolution fails before any message is appended.
// A generating session is left alone: the generation owner settles it, and
// a racing resolution failure must not stomp a live stream.
func (m *Manager) MarkError(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Status == chat.StatusGenerating {
		return
	}
	s.Status = chat.StatusError
	s.UpdatedAt = time.Now()
}
