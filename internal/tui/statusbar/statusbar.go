package statusbar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/asyncprep/internal/tui/theme"
)

// Model is the status bar component.
type Model struct {
	width      int
	connected  bool
	connName   string
	activePane string
	pending    int
	workers    int
	message    string
}

// New creates a new status bar model.
func New() Model {
	return Model{
		activePane: "editor",
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection status display.
func (m *Model) SetConnected(connected bool, name string) {
	m.connected = connected
	m.connName = name
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetPending shows how many preparations are in flight on how many workers.
func (m *Model) SetPending(pending, workers int) {
	m.pending = pending
	m.workers = workers
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Update handles messages (status bar has no interactive behavior).
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var left string
	if m.connected {
		left = lipgloss.NewStyle().
			Foreground(theme.ColorSuccess).
			Render("●") + " " + m.connName
	} else {
		left = lipgloss.NewStyle().
			Foreground(theme.ColorError).
			Render("●") + " disconnected"
	}
	if m.pending > 0 {
		left += "  " + theme.StyleWarning.Render(fmt.Sprintf("⟳ %d preparing (%d workers)", m.pending, m.workers))
	}

	right := "Ctrl+E: Prepare │ Tab: " + m.activePane + " │ ?: Help │ q: Quit"
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
