package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/joacominatel/asyncprep/internal/app"
	"github.com/joacominatel/asyncprep/internal/config"
	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/database/nativetest"
	"github.com/joacominatel/asyncprep/internal/tui/editor"
)

func newConnectedModel(t *testing.T, driver *nativetest.Driver) Model {
	t.Helper()
	svc := app.NewService(driver, app.WithWorkers(2))
	t.Cleanup(func() { _ = svc.Close() })

	conn, err := svc.Connect(context.Background(), "C1", "postgres://localhost/db")
	require.NoError(t, err)

	m := NewModel(svc, &config.Config{}, Options{ConfigDir: t.TempDir()})
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return step(t, m, connectedMsg{profile: config.Connection{Name: "C1"}, conn: conn})
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestNewModelMode(t *testing.T) {
	svc := app.NewService(nativetest.NewDriver())
	t.Cleanup(func() { _ = svc.Close() })

	m := NewModel(svc, &config.Config{}, Options{})
	assert.Equal(t, ModeConnect, m.mode)

	cfg := &config.Config{Connections: []config.Connection{{Name: "local"}}}
	m = NewModel(svc, cfg, Options{})
	assert.Equal(t, ModeSelectConnection, m.mode)

	m = NewModel(svc, cfg, Options{DSN: "postgres://localhost/db"})
	assert.Equal(t, ModeConnect, m.mode)
}

func TestConnectedSwitchesToMain(t *testing.T) {
	m := newConnectedModel(t, nativetest.NewDriver())
	assert.Equal(t, ModeMain, m.mode)
	assert.Equal(t, PaneEditor, m.activePane)
	assert.NotNil(t, m.conn)
}

func TestConnectFailureStaysOnPrompt(t *testing.T) {
	svc := app.NewService(nativetest.NewDriver())
	t.Cleanup(func() { _ = svc.Close() })

	m := NewModel(svc, &config.Config{}, Options{})
	m = step(t, m, connectedMsg{err: errors.New("refused")})
	assert.Equal(t, ModeConnect, m.mode)
	assert.EqualError(t, m.err, "refused")
}

func TestPrepareAndComplete(t *testing.T) {
	driver := nativetest.NewDriver()
	m := newConnectedModel(t, driver)

	m = step(t, m, editor.PrepareMsg{SQL: "select id from t"})
	require.Len(t, m.submissions, 1)
	var id string
	for k := range m.submissions {
		id = k
	}
	require.Len(t, m.service.Statements(), 1)

	msg := m.waitCompletionCmd()()
	m = step(t, m, msg)

	assert.Empty(t, m.submissions)
	current, ok := m.results.Current()
	require.True(t, ok)
	assert.Equal(t, id, current)

	stmt, err := m.service.Statement(id)
	require.NoError(t, err)
	assert.True(t, stmt.Prepared())
}

func TestPrepareFailureShowsError(t *testing.T) {
	driver := nativetest.NewDriver()
	driver.Default = nativetest.Result{Code: database.CodeSyntaxError}
	m := newConnectedModel(t, driver)

	m = step(t, m, editor.PrepareMsg{SQL: "select from"})
	m = step(t, m, m.waitCompletionCmd()())

	assert.Empty(t, m.submissions)
	assert.Empty(t, m.service.Statements())
	assert.Contains(t, m.results.View(), database.Message(database.CodeSyntaxError))
}

func TestPrepareWithoutConnection(t *testing.T) {
	svc := app.NewService(nativetest.NewDriver())
	t.Cleanup(func() { _ = svc.Close() })

	m := NewModel(svc, &config.Config{}, Options{})
	m = step(t, m, editor.PrepareMsg{SQL: "select 1"})
	assert.Empty(t, m.submissions)
}

func TestFocusCycle(t *testing.T) {
	m := newConnectedModel(t, nativetest.NewDriver())

	m.setFocus(PaneResults)
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneHistory, m.activePane)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, PaneResults, m.activePane)
}

func TestDeleteSavedConnection(t *testing.T) {
	keyring.MockInit()
	svc := app.NewService(nativetest.NewDriver())
	t.Cleanup(func() { _ = svc.Close() })

	dir := t.TempDir()
	cfg := &config.Config{Connections: []config.Connection{
		{Name: "a", Driver: config.DriverPostgres, Host: "localhost", Database: "a"},
		{Name: "b", Driver: config.DriverPostgres, Host: "localhost", Database: "b"},
	}}
	m := NewModel(svc, cfg, Options{ConfigDir: dir})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	require.NotNil(t, cmd)
	require.Len(t, m.cfg.Connections, 1)
	assert.Equal(t, "b", m.cfg.Connections[0].Name)

	saved, ok := cmd().(connectionSavedMsg)
	require.True(t, ok)
	require.NoError(t, saved.err)

	loaded, err := config.Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded.Connections, 1)
	assert.Equal(t, "b", loaded.Connections[0].Name)
}
