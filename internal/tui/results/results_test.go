package results

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/layout"
)

func sampleInfo(t *testing.T) Info {
	t.Helper()
	plan, err := layout.NewCalculator(nil).Plan([]database.Descriptor{
		{Type: database.TypeInt, Length: 4},
		{Type: database.TypeChar, Length: 9},
	})
	require.NoError(t, err)
	return Info{StmtID: "S1", ConnID: "C1", SQL: "select id, name from t", Kind: database.KindQuery, Plan: plan}
}

func TestViewShowsLayout(t *testing.T) {
	m := New()
	m.SetSize(80, 20)
	m.SetPending("S1")
	assert.Contains(t, m.View(), "preparing S1")

	m.SetInfo(sampleInfo(t))
	view := m.View()
	assert.NotContains(t, view, "preparing")
	assert.Contains(t, view, "buffer 14 bytes")
	assert.Contains(t, view, "CHAR")

	id, ok := m.Current()
	assert.True(t, ok)
	assert.Equal(t, "S1", id)
}

func TestViewShowsError(t *testing.T) {
	m := New()
	m.SetPending("S2")
	m.SetError("S2", assert.AnError)
	view := m.View()
	assert.Contains(t, view, "S2: "+assert.AnError.Error())
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestFreeKey(t *testing.T) {
	m := New()
	m.SetFocused(true)
	m.SetInfo(sampleInfo(t))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	require.NotNil(t, cmd)
	assert.Equal(t, FreeStatementMsg{StmtID: "S1"}, cmd())

	m.Clear("S1")
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestExportOf(t *testing.T) {
	e := exportOf(sampleInfo(t))
	assert.Equal(t, 14, e.BufferSize)
	require.Len(t, e.Columns, 2)
	assert.Equal(t, 4, e.Columns[1].Offset)
	assert.Equal(t, 10, e.Columns[1].Length)
	assert.True(t, strings.EqualFold(e.Kind, "query"))
}
