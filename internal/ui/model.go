package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricast/internal/nowplaying"
)

const (
	offsetStepMs = 100
	offsetJumpMs = 500
)

// Controller is the only write path from the presentation layer back into a session.
type Controller interface {
	AdjustManualOffset(deltaMs int64) (int64, error)
	ResetManualOffset() error
	ManualOffset() int64
	Refetch()
}

type SnapshotMsg struct {
	Snapshot nowplaying.Snapshot
}

type storeClosedMsg struct{}

type Model struct {
	snapshots  <-chan nowplaying.Snapshot
	controller Controller
	hideHeader bool
	source     string

	snap         nowplaying.Snapshot
	manualOffset int64
	err          error
	quitting     bool
	width        int
	height       int
}

type ModelConfig struct {
	// Snapshots usually comes from (*nowplaying.Store).Subscribe.
	Snapshots  <-chan nowplaying.Snapshot
	Controller Controller
	HideHeader bool
	Source     string
}

func NewModel(cfg ModelConfig) Model {
	m := Model{
		snapshots:  cfg.Snapshots,
		controller: cfg.Controller,
		hideHeader: cfg.HideHeader,
		source:     cfg.Source,
	}
	m.snap.ActiveIndex = -1
	if cfg.Controller != nil {
		m.manualOffset = cfg.Controller.ManualOffset()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m Model) waitForSnapshot() tea.Cmd {
	if m.snapshots == nil {
		return nil
	}

	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			return storeClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m Model) Snapshot() nowplaying.Snapshot { return m.snap }
func (m Model) ManualOffset() int64           { return m.manualOffset }
func (m Model) HideHeader() bool              { return m.hideHeader }
func (m Model) Err() error                    { return m.err }
func (m Model) IsQuitting() bool              { return m.quitting }
