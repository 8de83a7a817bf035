// ABOUTME: Bubbletea model for the pcmbridge TUI
// ABOUTME: Defines device state, key handling and the lipgloss view
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/pcmbridge/internal/version"
)

const boxWidth = 54

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(boxWidth)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	stateStyles = map[string]lipgloss.Style{
		"streaming": lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"underrun":  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		"idle":      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		"closed":    lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true),
	}
)

// Model represents the TUI state
type Model struct {
	// Device
	open     bool
	backend  string
	handleID string

	// Format
	sampleRate int
	channels   int
	blockSize  int

	// Producer
	producer string
	paused   bool

	// Playback
	state  string
	volume int
	muted  bool

	// Queue
	queued   int
	capacity int

	// Stats
	pushed    uint64
	dropped   uint64
	pulls     uint64
	underruns uint64
	silent    uint64
	listeners int

	// Debug
	showDebug  bool
	goroutines int
	heapMB     float64

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderFormat(),
		m.renderControls(),
		m.renderStats(),
	}

	if m.showDebug {
		sections = append(sections, m.renderDebug())
	}

	sections = append(sections, m.renderHelp())

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)) + "\n"
}

// renderHeader renders device status
func (m Model) renderHeader() string {
	title := titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version))

	status := "Closed"
	if m.open {
		status = fmt.Sprintf("Open on %s", m.backend)
	}

	state := m.state
	if state == "" {
		state = "idle"
	}
	styled := state
	if style, ok := stateStyles[state]; ok {
		styled = style.Render(state)
	}

	return title + "\n" +
		row("Device:", status) +
		row("State:", styled)
}

// renderFormat renders the negotiated format and the producer
func (m Model) renderFormat() string {
	if !m.open || m.sampleRate == 0 {
		return row("Format:", "(not negotiated)")
	}

	producer := m.producer
	if producer == "" {
		producer = "(none)"
	}
	if m.paused {
		producer += " [paused]"
	}

	return row("Format:", fmt.Sprintf("%dHz %s, %d frames/block", m.sampleRate, channelName(m.channels), m.blockSize)) +
		row("Source:", truncate(producer, boxWidth-14))
}

// renderControls renders volume and queue depth
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	queueMs := 0
	if m.sampleRate > 0 && m.channels > 0 {
		queueMs = m.queued * 1000 / (m.sampleRate * m.channels)
	}

	return "\n" +
		row("Volume:", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)) +
		row("Queue:", fmt.Sprintf("[%s] %dms", renderBar(m.queued, m.capacity, 20), queueMs))
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	s := "\n" +
		row("Pushed:", fmt.Sprintf("%d  Dropped: %d", m.pushed, m.dropped)) +
		row("Pulls:", fmt.Sprintf("%d  Underruns: %d  Silent: %d", m.pulls, m.underruns, m.silent))
	if m.listeners > 0 {
		s += row("Clients:", fmt.Sprintf("%d", m.listeners))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "\n" + helpStyle.Render("↑/↓:Volume  m:Mute  p:Pause  d:Debug  q:Quit")
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return "\n" + titleStyle.Render("DEBUG") + "\n" +
		row("Handle:", m.handleID) +
		row("Routines:", fmt.Sprintf("%d", m.goroutines)) +
		row("Heap:", fmt.Sprintf("%.1f MB", m.heapMB))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "up":
		if m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.controls.changeVolume(m.volume, m.muted)
		}
	case "down":
		if m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.controls.changeVolume(m.volume, m.muted)
		}
	case "m":
		m.muted = !m.muted
		m.controls.changeVolume(m.volume, m.muted)
	case "p":
		m.paused = !m.paused
		m.controls.pause(m.paused)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Open != nil {
		m.open = *msg.Open
		if !m.open {
			m.state = "closed"
		}
	}
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.HandleID != "" {
		m.handleID = msg.HandleID
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.blockSize = msg.BlockSize
	}
	if msg.Producer != "" {
		m.producer = msg.Producer
	}
	if msg.Paused != nil {
		m.paused = *msg.Paused
	}
	if msg.State != "" && m.open {
		m.state = msg.State
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Capacity != 0 {
		m.queued = msg.Queued
		m.capacity = msg.Capacity
		m.listeners = msg.Listeners
	}
	if msg.Pulls != 0 || msg.Pushed != 0 {
		m.pushed = msg.Pushed
		m.dropped = msg.Dropped
		m.pulls = msg.Pulls
		m.underruns = msg.Underruns
		m.silent = msg.Silent
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.heapMB = msg.HeapMB
	}
}

// StatusMsg updates TUI state. Zero fields are left unchanged; Queued,
// Capacity and Listeners travel together.
type StatusMsg struct {
	Open       *bool
	Backend    string
	HandleID   string
	SampleRate int
	Channels   int
	BlockSize  int
	Producer   string
	Paused     *bool
	State      string
	Volume     *int
	Muted      *bool
	Queued     int
	Capacity   int
	Pushed     uint64
	Dropped    uint64
	Pulls      uint64
	Underruns  uint64
	Silent     uint64
	Listeners  int
	Goroutines int
	HeapMB     float64
}

// Utility functions
func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

func renderBar(value, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := max(min((value*width)/total, width), 0)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
