package results

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/layout"
	"github.com/joacominatel/asyncprep/internal/tui/theme"
)

// Info describes a prepared statement and its row layout.
type Info struct {
	StmtID  string
	ConnID  string
	SQL     string
	Kind    database.StatementKind
	Inputs  int
	Plan    layout.Plan
	Elapsed time.Duration
}

var headers = []string{"#", "type", "length", "offset", "size"}

// Model is the row layout component.
type Model struct {
	info      *Info
	pendingID string
	err       error
	errID     string
	width     int
	height    int
	focused   bool
	cursor    int
	colWidths []int

	statusMessage string
}

// New creates a new layout pane.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetPending shows that stmtID is being prepared.
func (m *Model) SetPending(stmtID string) {
	m.pendingID = stmtID
	m.err = nil
}

// SetInfo displays a prepared statement.
func (m *Model) SetInfo(info Info) {
	m.info = &info
	m.err = nil
	m.cursor = 0
	if m.pendingID == info.StmtID {
		m.pendingID = ""
	}
	m.calculateColumnWidths()
}

// SetError displays the failure of stmtID.
func (m *Model) SetError(stmtID string, err error) {
	m.err = err
	m.errID = stmtID
	m.info = nil
	m.colWidths = nil
	if m.pendingID == stmtID {
		m.pendingID = ""
	}
}

// Clear removes the displayed statement if it is stmtID.
func (m *Model) Clear(stmtID string) {
	if m.info != nil && m.info.StmtID == stmtID {
		m.info = nil
		m.colWidths = nil
	}
}

// Current returns the displayed statement id.
func (m Model) Current() (string, bool) {
	if m.info == nil {
		return "", false
	}
	return m.info.StmtID, true
}

func (m *Model) calculateColumnWidths() {
	m.colWidths = make([]int, len(headers))
	for i, h := range headers {
		m.colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range m.rows() {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}
}

func (m Model) rows() [][]string {
	if m.info == nil {
		return nil
	}
	rows := make([][]string, len(m.info.Plan.Columns))
	for i, c := range m.info.Plan.Columns {
		rows[i] = []string{
			strconv.Itoa(c.Index + 1),
			c.Type.String(),
			strconv.Itoa(c.Length),
			strconv.Itoa(c.Offset),
			strconv.Itoa(c.Size),
		}
	}
	return rows
}

// Update handles messages for the layout pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	m.statusMessage = ""
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.info != nil && m.cursor < len(m.info.Plan.Columns)-1 {
			m.cursor++
		}
	case "y":
		m.doCopyID()
	case "c":
		m.doCopyPlanCSV()
	case "J":
		return m, m.exportJSONCmd()
	case "d":
		if m.info != nil {
			id := m.info.StmtID
			return m, func() tea.Msg { return FreeStatementMsg{StmtID: id} }
		}
	}

	if m.statusMessage != "" {
		text := m.statusMessage
		return m, func() tea.Msg { return StatusNotifyMsg{Message: text} }
	}
	return m, nil
}

// View renders the layout pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)
	title := titleStyle.Render("Row Layout")

	var b strings.Builder
	if m.pendingID != "" {
		b.WriteString(title + "  " + theme.StyleWarning.Render("preparing "+m.pendingID+"..."))
	} else {
		b.WriteString(title)
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(theme.StyleError.Render("  " + m.errID + ": " + m.err.Error()))
		return b.String()
	case m.info == nil:
		b.WriteString(theme.StyleMuted.Render("  Prepare a statement to see its row layout"))
		return b.String()
	}

	info := m.info
	b.WriteString(theme.StyleMuted.Render(fmt.Sprintf("  %s on %s │ %s │ %d input(s) │ buffer %d bytes │ %s",
		info.StmtID, info.ConnID, info.Kind, info.Inputs, info.Plan.Size, info.Elapsed.Round(time.Microsecond))))
	b.WriteString("\n")

	if len(info.Plan.Columns) == 0 {
		b.WriteString(theme.StyleSuccess.Render("  No output columns"))
		return b.String()
	}

	b.WriteString(m.renderRow(headers, true, false))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	rows := m.rows()
	for i := start; i < len(rows) && i < start+visible; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(rows[i], false, m.focused && i == m.cursor))
	}
	return b.String()
}

func (m Model) renderRow(cells []string, header, selected bool) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		w := m.colWidths[i]
		pad := w - lipgloss.Width(cell)
		if pad < 0 {
			pad = 0
		}
		// numbers right aligned, type name left aligned
		if i == 1 {
			cell += strings.Repeat(" ", pad)
		} else {
			cell = strings.Repeat(" ", pad) + cell
		}
		if header {
			cell = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary).Render(cell)
		}
		parts[i] = cell
	}
	line := "  " + strings.Join(parts, " │ ")
	if selected {
		return lipgloss.NewStyle().Foreground(theme.ColorHighlight).Render(line)
	}
	return line
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", w)
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}
