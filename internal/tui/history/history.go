package history

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/journal"
	"github.com/joacominatel/asyncprep/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeSection NodeKind = iota
	NodeStatement
	NodeEntry
)

// TreeNode is a single node of the history tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool

	StmtID  string
	SQL     string
	Detail  string
	Failed  bool
	Pending bool
}

type flatItem struct {
	node  *TreeNode
	depth int
}

// SelectMsg asks the app to show the layout of a statement.
type SelectMsg struct {
	StmtID string
}

// RecallMsg asks the app to put SQL back into the editor.
type RecallMsg struct {
	SQL string
}

// FreeMsg asks the app to free a statement.
type FreeMsg struct {
	StmtID string
}

// Model is the history component: live statements and the journal.
type Model struct {
	statements *TreeNode
	journal    *TreeNode
	items      []flatItem
	cursor     int
	width      int
	height     int
	focused    bool
}

// New creates a new history model.
func New() Model {
	m := Model{
		statements: &TreeNode{Kind: NodeSection, Name: "Statements", Expanded: true},
		journal:    &TreeNode{Kind: NodeSection, Name: "Journal", Expanded: true},
	}
	m.flatten()
	return m
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

// SetStatements replaces the live statement list.
func (m *Model) SetStatements(stmts []*database.Statement) {
	m.statements.Children = m.statements.Children[:0]
	for _, s := range stmts {
		node := &TreeNode{
			Kind:    NodeStatement,
			Name:    s.ID,
			StmtID:  s.ID,
			SQL:     s.Text,
			Pending: !s.Prepared(),
		}
		if kind, ok := s.Kind(); ok {
			size, _ := s.BufferSize()
			node.Detail = fmt.Sprintf("%s, %dB", kind, size)
		}
		m.statements.Children = append(m.statements.Children, node)
	}
	m.flatten()
}

// SetEntries replaces the journal list.
func (m *Model) SetEntries(entries []journal.Entry) {
	m.journal.Children = m.journal.Children[:0]
	for _, e := range entries {
		node := &TreeNode{
			Kind:   NodeEntry,
			Name:   e.Time().Local().Format("15:04:05") + " " + e.StmtID,
			StmtID: e.StmtID,
			SQL:    e.SQL,
			Failed: e.Failed(),
		}
		switch {
		case e.Failed():
			node.Detail = e.Error
		case e.BufferSize != nil:
			node.Detail = fmt.Sprintf("%dB in %s", *e.BufferSize, e.Elapsed())
		}
		m.journal.Children = append(m.journal.Children, node)
	}
	m.flatten()
}

// Selected returns the node under the cursor.
func (m Model) Selected() *TreeNode {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return m.items[m.cursor].node
}

func (m *Model) flatten() {
	m.items = m.items[:0]
	for _, section := range []*TreeNode{m.statements, m.journal} {
		m.items = append(m.items, flatItem{node: section})
		if !section.Expanded {
			continue
		}
		for _, child := range section.Children {
			m.items = append(m.items, flatItem{node: child, depth: 1})
		}
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

// Update handles messages for the history pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		return m, m.activate()
	case "left", "h":
		if node := m.Selected(); node != nil && node.Kind == NodeSection && node.Expanded {
			node.Expanded = false
			m.flatten()
		}
	case "e":
		if node := m.Selected(); node != nil && node.SQL != "" {
			sql := node.SQL
			return m, func() tea.Msg { return RecallMsg{SQL: sql} }
		}
	case "d":
		if node := m.Selected(); node != nil && node.Kind == NodeStatement && !node.Pending {
			id := node.StmtID
			return m, func() tea.Msg { return FreeMsg{StmtID: id} }
		}
	}
	return m, nil
}

func (m *Model) activate() tea.Cmd {
	node := m.Selected()
	if node == nil {
		return nil
	}
	switch node.Kind {
	case NodeSection:
		node.Expanded = !node.Expanded
		m.flatten()
	case NodeStatement:
		if !node.Pending {
			id := node.StmtID
			return func() tea.Msg { return SelectMsg{StmtID: id} }
		}
	case NodeEntry:
		sql := node.SQL
		return func() tea.Msg { return RecallMsg{SQL: sql} }
	}
	return nil
}

// View renders the history pane.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Render("History")

	var b strings.Builder
	b.WriteString(title)

	visible := m.height - 2
	if visible < 1 {
		visible = 1
	}
	offset := 0
	if m.cursor >= visible {
		offset = m.cursor - visible + 1
	}

	for i := offset; i < len(m.items) && i < offset+visible; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
	}
	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	var line string
	switch node.Kind {
	case NodeSection:
		icon := "▶ "
		if node.Expanded {
			icon = "▼ "
		}
		line = indent + icon + fmt.Sprintf("%s (%d)", node.Name, len(node.Children))
	default:
		marker := theme.StyleSuccess.Render("✓ ")
		switch {
		case node.Pending:
			marker = theme.StyleWarning.Render("⟳ ")
		case node.Failed:
			marker = theme.StyleError.Render("✗ ")
		}
		line = indent + marker + node.Name
		if node.Detail != "" {
			line += " " + theme.StyleMuted.Render(node.Detail)
		}
	}

	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		runes := []rune(line)
		for len(runes) > 0 && lipgloss.Width(string(runes)) > m.width-4 {
			runes = runes[:len(runes)-1]
		}
		line = string(runes) + ".."
	}

	if selected && m.focused {
		return lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render(line)
	}
	return line
}
