// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"

	"llm-playground/internal/provider"
)

// MaxMessages is the maximum number of messages kept in a session's
// history. Old messages are pruned to prevent unbounded memory growth;
// system messages are always preserved.
const MaxMessages = 1000

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the per-session state machine value.
//
// idle -> generating -> idle on success, generating -> error on failure,
// error -> idle on the next successful append. idle and error are resting
// states; generating is transient and exclusive.
type Status int

const (
	StatusIdle Status = iota
	StatusGenerating
	StatusError
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusGenerating:
		return "generating"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one independent conversation thread: an ordered message
// log plus the active generation parameters.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []*Message `json:"messages"`

	Config provider.GenerationConfig `json:"config"`
	Status Status                    `json:"status"`
}

// NewSession creates a new session with an empty message log.
func NewSession(cfg provider.GenerationConfig) *Session {
	now := time.Now()
	return &Session{
		ID:        "sess_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
		Config:    cfg,
		Status:    StatusIdle,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AppendMessage adds a message to the log.
func (s *Session) AppendMessage(msg *Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	s.updateTitle()
	s.pruneOldMessages()
}

// AppendUserMessage creates and appends a user message. A session resting
// in the error state returns to idle on a successful append.
func (s *Session) AppendUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	s.AppendMessage(msg)
	if s.Status == StatusError {
		s.Status = StatusIdle
	}
	return msg
}

// LastMessage returns the most recent message, or nil if empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// ClearHistory removes all messages from the session.
func (s *Session) ClearHistory() {
	s.Messages = make([]*Message, 0)
	s.Title = ""
	s.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// =============================================================================
// PROVIDER CONVERSION
// =============================================================================

// History converts the log to the normalized provider format, skipping the
// in-progress streaming placeholder and empty messages. This is the message
// list an adapter receives.
func (s *Session) History() []provider.Message {
	messages := make([]provider.Message, 0, len(s.Messages))
	for _, msg := range s.Messages {
		if msg.IsStreaming || msg.IsEmpty() {
			continue
		}
		messages = append(messages, msg.ToProvider())
	}
	return messages
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if not set.
func (s *Session) updateTitle() {
	if s.Title != "" {
		return
	}
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			s.Title = msg.Preview(50)
			return
		}
	}
}

// DisplayTitle returns the session title or a default.
func (s *Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return "New Conversation"
}

// =============================================================================
// METADATA
// =============================================================================

// Meta holds lightweight session metadata for listing.
type Meta struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Config       provider.GenerationConfig `json:"config"`
	Status       Status                    `json:"status"`
	MessageCount int                       `json:"message_count"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// GetMeta returns metadata about the session.
func (s *Session) GetMeta() Meta {
	return Meta{
		ID:           s.ID,
		Title:        s.DisplayTitle(),
		Config:       s.Config,
		Status:       s.Status,
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// =============================================================================
// PRUNING
// =============================================================================

// pruneOldMessages drops the oldest non-system messages once the log
// exceeds MaxMessages.
func (s *Session) pruneOldMessages() {
	if len(s.Messages) <= MaxMessages {
		return
	}

	var systemMessages []*Message
	var otherMessages []*Message
	for _, msg := range s.Messages {
		if msg.Role == RoleSystem {
			systemMessages = append(systemMessages, msg)
		} else {
			otherMessages = append(otherMessages, msg)
		}
	}

	if len(otherMessages) > MaxMessages {
		otherMessages = otherMessages[len(otherMessages)-MaxMessages:]
	}

	s.Messages = make([]*Message, 0, len(systemMessages)+len(otherMessages))
	s.Messages = append(s.Messages, systemMessages...)
	s.Messages = append(s.Messages, otherMessages...)
}
