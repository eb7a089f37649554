// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llm-council/internal/invoker"
)

func TestProgressModel_TracksMembers(t *testing.T) {
	m := newProgressModel([]string{"alpha", "beta"})
	fixed := time.Date(2025, 1, 1, 0, 0, 10, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	next, _ := m.Update(memberStartedMsg{model: "alpha", at: fixed.Add(-2 * time.Second)})
	m = next.(progressModel)
	view := m.View()
	assert.Contains(t, view, "alpha")
	assert.Contains(t, view, "2.0s")

	next, _ = m.Update(memberFinishedMsg{outcome: invoker.Outcome{
		Model:    "alpha",
		Result:   &invoker.Result{Content: "ok"},
		Duration: 1500 * time.Millisecond,
	}})
	m = next.(progressModel)
	next, _ = m.Update(memberFinishedMsg{outcome: invoker.Outcome{
		Model: "beta",
		Err:   &invoker.Error{Kind: invoker.KindTimeout, Model: "beta"},
	}})
	m = next.(progressModel)

	view = m.View()
	assert.Contains(t, view, "[OK] alpha")
	assert.Contains(t, view, "[FAIL] beta")
	assert.Contains(t, view, "timeout")
}

func TestProgressModel_QuitsWhenDone(t *testing.T) {
	m := newProgressModel([]string{"alpha"})

	next, cmd := m.Update(councilDoneMsg{})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(progressModel).View())
}

func TestProgressModel_UnannouncedMember(t *testing.T) {
	m := newProgressModel(nil)

	next, _ := m.Update(memberFinishedMsg{outcome: invoker.Outcome{Model: "late", Result: &invoker.Result{}}})

	assert.Contains(t, next.(progressModel).members, "late")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1530*time.Millisecond))
}
