package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelQuitsWithResult(t *testing.T) {
	m := New("Asking llama3.2 for a fix", func() (string, error) { return "[]", nil })
	assert.Contains(t, m.View(), "Asking llama3.2 for a fix")

	msg := m.exchange()
	updated, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	final := updated.(Model)
	require.NotNil(t, final.result)
	assert.Equal(t, "[]", final.result.reply)
	assert.Empty(t, final.View())
}

func TestModelCarriesError(t *testing.T) {
	boom := errors.New("connection refused")
	m := New("x", func() (string, error) { return "", boom })

	updated, _ := m.Update(m.exchange())
	assert.ErrorIs(t, updated.(Model).result.err, boom)
}

func TestModelInterruptsOnCtrlC(t *testing.T) {
	m := New("x", func() (string, error) { return "", nil })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.InterruptMsg{}, cmd())
}
