// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels carrying key actions back to the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg carries a volume or mute change from the keyboard
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// PauseMsg pauses or resumes the producer
type PauseMsg struct {
	Paused bool
}

// QuitMsg asks the app to shut down
type QuitMsg struct{}

// Controls holds channels for key actions the app must act on
type Controls struct {
	Changes chan VolumeChangeMsg
	Pause   chan PauseMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan VolumeChangeMsg, 10),
		Pause:   make(chan PauseMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

func (c *Controls) changeVolume(volume int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Changes <- VolumeChangeMsg{Volume: volume, Muted: muted}:
	default:
	}
}

func (c *Controls) pause(paused bool) {
	if c == nil {
		return
	}
	select {
	case c.Pause <- PauseMsg{Paused: paused}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		state:    "idle",
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, volume int) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
	return p, nil
}
