package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case SnapshotMsg:
		m.snap = msg.Snapshot
		return m, m.waitForSnapshot()

	case storeClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "+", "=":
		m.adjustOffset(offsetStepMs)

	case "down", "j", "-":
		m.adjustOffset(-offsetStepMs)

	case "right", "l":
		m.adjustOffset(offsetJumpMs)

	case "left", "h":
		m.adjustOffset(-offsetJumpMs)

	case "0":
		if m.controller != nil {
			m.err = m.controller.ResetManualOffset()
			m.manualOffset = m.controller.ManualOffset()
		}

	case "r":
		if m.controller != nil {
			m.controller.Refetch()
		}

	case "tab", "i":
		m.hideHeader = !m.hideHeader
	}

	return m, nil
}

func (m *Model) adjustOffset(deltaMs int64) {
	if m.controller == nil {
		return
	}
	m.manualOffset, m.err = m.controller.AdjustManualOffset(deltaMs)
}
