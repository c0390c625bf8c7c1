package editor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"select id from t", "SELECT id FROM t"},
		{"select 'from where' from t", "SELECT 'from where' FROM t"},
		{"select first 10 * from customer where name matches \"A*\"", "SELECT FIRST 10 * FROM customer WHERE name MATCHES \"A*\""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatKeywords(tt.in))
	}
}

func TestLastWord(t *testing.T) {
	assert.Equal(t, "sel", lastWord("sel"))
	assert.Equal(t, "fr", lastWord("select * fr"))
	assert.Equal(t, "", lastWord("select * "))
}

func TestPrepareKey(t *testing.T) {
	m := New()
	m.SetFocused(true)
	m.SetQuery("  select 1  ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	require.NotNil(t, cmd)
	assert.Equal(t, PrepareMsg{SQL: "select 1"}, cmd())

	m.Clear()
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Nil(t, cmd)
}

func TestKeywordCompletion(t *testing.T) {
	m := New()
	m.SetFocused(true)
	m.SetQuery("select * fr")

	m.tryCompletion()
	assert.True(t, m.CompletionActive())
	assert.Equal(t, "select * FROM", m.Value())
}
