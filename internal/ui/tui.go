package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	kberr "github.com/mwestra/kbindex/internal/errors"
	"github.com/mwestra/kbindex/internal/generation"
)

// Messages for the progress model.
type eventMsg generation.Event
type streamClosedMsg struct{}

// progressModel renders one generation run live.
type progressModel struct {
	indexType string
	events    <-chan generation.Event
	styles    Styles

	spin    spinner.Model
	bar     progress.Model
	current generation.Event
	closed  bool
	aborted bool
}

func newProgressModel(indexType string, initial generation.Snapshot, events <-chan generation.Event) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan))

	bar := progress.New(
		progress.WithSolidFill(ColorGreen),
		progress.WithWidth(40),
	)

	return progressModel{
		indexType: indexType,
		events:    events,
		styles:    DefaultStyles(),
		spin:      s,
		bar:       bar,
		current:   generation.EventFromSnapshot(initial),
	}
}

func waitForEvent(events <-chan generation.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init implements tea.Model.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m.current = generation.Event(msg)
		if m.finished() {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

// finished reports whether the run reached a terminal display state:
// back to ready after completing, or failed.
func (m progressModel) finished() bool {
	if m.current.State == string(generation.StateError) {
		return true
	}
	return m.current.State == string(generation.StateReady) &&
		m.current.Stage == generation.StageCompleted
}

// View implements tea.Model.
func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("generating " + m.indexType))
	b.WriteString("\n\n")

	switch {
	case m.current.State == string(generation.StateError):
		b.WriteString(m.styles.Bad.Render("✗ generation failed"))
		if m.current.Message != "" {
			b.WriteString("\n  " + m.current.Message)
		}
		if m.current.ErrorSource != "" {
			b.WriteString(m.styles.Label.Render(
				fmt.Sprintf(" (during %s)", m.current.ErrorSource)))
		}
	case m.finished():
		b.WriteString(m.styles.Healthy.Render("✓ generation complete"))
	default:
		pct := m.current.Progress
		b.WriteString(fmt.Sprintf("%s %s %3d%%\n",
			m.spin.View(), m.bar.ViewAs(float64(pct)/100), pct))
		stage := m.current.Stage
		if stage == "" {
			stage = "waiting for engine"
		}
		b.WriteString("  " + m.styles.Label.Render(stage))
		if m.current.Message != "" {
			b.WriteString("  " + m.current.Message)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(m.styles.Label.Render("q to detach"))
	b.WriteString("\n")
	return b.String()
}

// RunProgress renders a generation run until it completes, fails, or
// the user detaches. Detaching leaves the run going in the daemon. A
// failed run is returned as a generation-coded error.
func RunProgress(indexType string, initial generation.Snapshot, events <-chan generation.Event) error {
	model := newProgressModel(indexType, initial, events)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return kberr.InternalError("render progress", err)
	}

	m, ok := final.(progressModel)
	if !ok || m.aborted {
		return nil
	}
	if m.current.State == string(generation.StateError) {
		msg := m.current.Message
		if msg == "" {
			msg = "generation failed"
		}
		return kberr.GenerationError(msg, nil)
	}
	return nil
}
