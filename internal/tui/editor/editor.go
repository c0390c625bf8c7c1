package editor

import (
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/asyncprep/internal/tui/theme"
)

// PrepareMsg is sent when the user submits the editor content for
// preparation.
type PrepareMsg struct {
	SQL string
}

// SQL keywords for formatting and completion.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"insert": true, "into": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "table": true,
	"index": true, "join": true, "inner": true, "outer": true,
	"left": true, "right": true, "cross": true, "on": true,
	"not": true, "in": true, "is": true, "null": true, "like": true,
	"matches": true, "order": true, "by": true, "group": true,
	"having": true, "first": true, "skip": true, "limit": true,
	"offset": true, "as": true, "distinct": true, "unique": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"between": true, "exists": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "values": true,
	"set": true, "union": true, "all": true, "asc": true, "desc": true,
	"execute": true, "procedure": true, "function": true, "call": true,
	"returning": true, "with": true,
}

// keywordList is sqlKeywords sorted, used for completion.
var keywordList = func() []string {
	out := make([]string, 0, len(sqlKeywords))
	for k := range sqlKeywords {
		out = append(out, strings.ToUpper(k))
	}
	sort.Strings(out)
	return out
}()

// Model is the SQL editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	completing  bool
	completions []string
	compIndex   int
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL to prepare..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{textarea: ta}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(w - 2)
	m.textarea.SetHeight(h - 2)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(sql string) {
	m.textarea.SetValue(sql)
}

// CompletionActive reports whether Tab is cycling keyword candidates.
func (m Model) CompletionActive() bool {
	return m.completing
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.cancelCompletion()
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+e", "f5":
			sql := strings.TrimSpace(m.textarea.Value())
			if sql == "" {
				return m, nil
			}
			m.cancelCompletion()
			return m, func() tea.Msg {
				return PrepareMsg{SQL: sql}
			}
		case "ctrl+k":
			m.Clear()
			return m, nil
		case "ctrl+l":
			m.textarea.SetValue(FormatKeywords(m.textarea.Value()))
			return m, nil
		case "ctrl+@", "ctrl+space":
			m.tryCompletion()
			return m, nil
		case "tab":
			if m.completing {
				m.tryCompletion()
				return m, nil
			}
		case "esc":
			if m.completing {
				m.cancelCompletion()
				return m, nil
			}
		}
		if m.completing {
			m.cancelCompletion()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// FormatKeywords uppercases SQL keywords outside string literals.
func FormatKeywords(sql string) string {
	var result, word strings.Builder
	var quote rune

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if sqlKeywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		result.WriteString(w)
		word.Reset()
	}

	for _, ch := range sql {
		switch {
		case quote != 0:
			result.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			result.WriteRune(ch)
		case unicode.IsLetter(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			result.WriteRune(ch)
		}
	}
	flush()
	return result.String()
}

// tryCompletion completes the word before the cursor with a keyword, or
// moves to the next candidate when already completing.
func (m *Model) tryCompletion() {
	if m.completing && len(m.completions) > 0 {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.applyCompletion()
		return
	}

	partial := strings.ToUpper(lastWord(m.textarea.Value()))
	if partial == "" {
		return
	}
	var matches []string
	for _, kw := range keywordList {
		if strings.HasPrefix(kw, partial) {
			matches = append(matches, kw)
		}
	}
	if len(matches) == 0 {
		return
	}

	m.completing = true
	m.completions = matches
	m.compIndex = 0
	m.applyCompletion()
}

func (m *Model) applyCompletion() {
	val := m.textarea.Value()
	base := strings.TrimSuffix(val, lastWord(val))
	m.textarea.SetValue(base + m.completions[m.compIndex])
}

func (m *Model) cancelCompletion() {
	m.completing = false
	m.completions = nil
	m.compIndex = 0
}

// lastWord returns the trailing identifier of s.
func lastWord(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			break
		}
		i--
	}
	return s[i:]
}

// View renders the editor.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Render("SQL")

	view := title + "\n" + m.textarea.View()
	if m.completing && len(m.completions) > 1 {
		hint := make([]string, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				hint[i] = lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(c)
			} else {
				hint[i] = theme.StyleMuted.Render(c)
			}
		}
		view += "\n " + theme.StyleMuted.Render("Tab: ") + strings.Join(hint, " │ ")
	}
	return view
}
