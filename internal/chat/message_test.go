// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"llm-playground/internal/provider"
)

func TestNewMessage_GeneratesUniqueIDs(t *testing.T) {
	a := NewUserMessage("one")
	b := NewUserMessage("two")
	require.True(t, strings.HasPrefix(a.ID, "msg_"))
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.Timestamp.IsZero())
}

// TestPlaceholder_StreamingLifecycle walks the placeholder through the full
// delta-accumulation lifecycle.
func TestPlaceholder_StreamingLifecycle(t *testing.T) {
	msg := NewAssistantPlaceholder()
	require.True(t, msg.IsStreaming)
	require.True(t, msg.IsEmpty())

	msg.AppendDelta("Hello")
	msg.AppendDelta(", world")
	require.Equal(t, "Hello, world", msg.DisplayContent())
	require.Empty(t, msg.Content, "content merges only on finalize")

	msg.Finalize(false)
	require.False(t, msg.IsStreaming)
	require.False(t, msg.Incomplete)
	require.Equal(t, "Hello, world", msg.Content)
}

func TestFinalize_IncompleteKeepsPartialContent(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendDelta("partial resp")
	msg.Finalize(true)

	require.True(t, msg.Incomplete)
	require.Equal(t, "partial resp", msg.Content)
}

func TestAppendDelta_IgnoredAfterFinalize(t *testing.T) {
	msg := NewAssistantPlaceholder()
	msg.AppendDelta("done")
	msg.Finalize(false)
	msg.AppendDelta(" extra")
	require.Equal(t, "done", msg.Content)
}

func TestPreview_TruncatesOnRunes(t *testing.T) {
	msg := NewUserMessage("héllo wörld, this is a long unicode message")
	preview := msg.Preview(10)
	require.Equal(t, "héllo w...", preview)

	short := NewUserMessage("hi")
	require.Equal(t, "hi", short.Preview(10))
}

func TestToProvider(t *testing.T) {
	msg := NewSystemMessage("be brief")
	got := msg.ToProvider()
	require.Equal(t, provider.RoleSystem, got.Role)
	require.Equal(t, "be brief", got.Content)
}

func TestRole_DisplayName(t *testing.T) {
	require.Equal(t, "You", RoleUser.DisplayName())
	require.Equal(t, "Assistant", RoleAssistant.DisplayName())
	require.Equal(t, "System", RoleSystem.DisplayName())
}
