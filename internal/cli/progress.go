// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/llm-council/internal/invoker"
)

// =============================================================================
// PROGRESS MODEL
// =============================================================================

type memberStartedMsg struct {
	model string
	at    time.Time
}

type memberFinishedMsg struct {
	outcome invoker.Outcome
}

type councilDoneMsg struct{}

type memberState struct {
	started  time.Time
	finished bool
	outcome  invoker.Outcome
}

// progressModel shows one line per council member while the council runs.
type progressModel struct {
	spinner spinner.Model
	order   []string
	members map[string]*memberState
	now     func() time.Time
	done    bool
}

func newProgressModel(ids []string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = TitleStyle

	members := make(map[string]*memberState, len(ids))
	for _, id := range ids {
		members[id] = &memberState{}
	}
	return progressModel{
		spinner: s,
		order:   ids,
		members: members,
		now:     time.Now,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case memberStartedMsg:
		st := m.state(msg.model)
		st.started = msg.at
		return m, nil

	case memberFinishedMsg:
		st := m.state(msg.outcome.Model)
		st.finished = true
		st.outcome = msg.outcome
		return m, nil

	case councilDoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// state returns the entry for id, adding ids that were not announced.
func (m progressModel) state(id string) *memberState {
	st, ok := m.members[id]
	if !ok {
		st = &memberState{}
		m.members[id] = st
	}
	return st
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	for _, id := range m.order {
		st := m.members[id]
		b.WriteString(m.line(id, st))
		b.WriteString("\n")
	}
	return b.String()
}

func (m progressModel) line(id string, st *memberState) string {
	if !st.finished {
		elapsed := ""
		if !st.started.IsZero() {
			elapsed = DimStyle.Render(fmt.Sprintf(" %.1fs", m.now().Sub(st.started).Seconds()))
		}
		return fmt.Sprintf("%s %s%s", m.spinner.View(), id, elapsed)
	}
	dur := DimStyle.Render(" " + formatDuration(st.outcome.Duration))
	if st.outcome.OK() {
		return SuccessStyle.Render("[OK]") + " " + id + dur
	}
	return ErrorStyle.Render("[FAIL]") + " " + id + " " + WarningStyle.Render(st.outcome.Kind().String()) + dur
}

// =============================================================================
// OBSERVER BRIDGE
// =============================================================================

// programObserver forwards invoker events into a running tea.Program.
type programObserver struct {
	program *tea.Program
}

func (o programObserver) InvocationStarted(model string) {
	o.program.Send(memberStartedMsg{model: model, at: time.Now()})
}

func (o programObserver) InvocationFinished(out invoker.Outcome) {
	o.program.Send(memberFinishedMsg{outcome: out})
}

// runWithProgress runs fn while drawing live member status on w. fn
// receives the observer to attach to its invoker.
func runWithProgress(w io.Writer, ids []string, fn func(invoker.Observer) map[string]invoker.Outcome) map[string]invoker.Outcome {
	p := tea.NewProgram(newProgressModel(ids), tea.WithOutput(w), tea.WithInput(nil))

	results := make(chan map[string]invoker.Outcome, 1)
	go func() {
		out := fn(programObserver{program: p})
		results <- out
		p.Send(councilDoneMsg{})
	}()

	// A failed or interrupted UI never hides the answers.
	_, _ = p.Run()
	return <-results
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
