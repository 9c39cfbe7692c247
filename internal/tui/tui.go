package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Styles ---
var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type resultMsg struct {
	reply string
	err   error
}

// --- Model ---

// Model shows a spinner while a blocking model exchange runs.
type Model struct {
	label   string
	spinner spinner.Model
	run     func() (string, error)
	result  *resultMsg
}

func New(label string, run func() (string, error)) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return Model{
		label:   label,
		spinner: s,
		run:     run,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.exchange)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}

	case resultMsg:
		m.result = &msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.result != nil {
		return ""
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), labelStyle.Render(m.label), faintStyle.Render("(ctrl+c to cancel)"))
}

func (m Model) exchange() tea.Msg {
	reply, err := m.run()
	return resultMsg{reply: reply, err: err}
}

// Spin runs fn behind a spinner on stderr and returns its result. On ctrl+c
// it returns context.Canceled without waiting for fn; the caller owns fn's
// context and cancels it.
func Spin(label string, fn func() (string, error)) (string, error) {
	p := tea.NewProgram(New(label, fn), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if errors.Is(err, tea.ErrInterrupted) {
		return "", context.Canceled
	}
	if err != nil {
		return "", fmt.Errorf("error running spinner: %w", err)
	}
	m, ok := final.(Model)
	if !ok || m.result == nil {
		return "", fmt.Errorf("model exchange did not complete")
	}
	return m.result.reply, m.result.err
}
