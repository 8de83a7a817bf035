// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil, 100) // Controls are optional for testing

	if model.open {
		t.Error("expected open to be false initially")
	}

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}

	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsgOpen(t *testing.T) {
	model := NewModel(nil, 100)

	open := true
	model.applyStatus(StatusMsg{
		Open:     &open,
		Backend:  "oto",
		HandleID: "abc",
	})

	if !model.open {
		t.Error("expected open to be true after status update")
	}
	if model.backend != "oto" {
		t.Errorf("expected backend 'oto', got '%s'", model.backend)
	}
	if model.handleID != "abc" {
		t.Errorf("expected handleID 'abc', got '%s'", model.handleID)
	}
}

func TestStatusMsgClosed(t *testing.T) {
	model := NewModel(nil, 100)

	open := true
	model.applyStatus(StatusMsg{Open: &open, State: "streaming"})

	closed := false
	model.applyStatus(StatusMsg{Open: &closed})

	if model.open {
		t.Error("expected open to be false after close")
	}
	if model.state != "closed" {
		t.Errorf("expected state 'closed', got '%s'", model.state)
	}

	// Late stats after close do not revive the state
	model.applyStatus(StatusMsg{State: "underrun"})
	if model.state != "closed" {
		t.Errorf("expected state to stay 'closed', got '%s'", model.state)
	}
}

func TestStatusMsgFormat(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{
		SampleRate: 48000,
		Channels:   2,
		BlockSize:  480,
	})

	if model.sampleRate != 48000 {
		t.Errorf("expected sampleRate 48000, got %d", model.sampleRate)
	}
	if model.channels != 2 {
		t.Errorf("expected channels 2, got %d", model.channels)
	}
	if model.blockSize != 480 {
		t.Errorf("expected blockSize 480, got %d", model.blockSize)
	}
}

func TestStatusMsgVolume(t *testing.T) {
	model := NewModel(nil, 100)

	zero := 0
	muted := true
	model.applyStatus(StatusMsg{Volume: &zero, Muted: &muted})

	if model.volume != 0 {
		t.Errorf("expected volume 0, got %d", model.volume)
	}
	if !model.muted {
		t.Error("expected muted")
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{
		Queued:    2205,
		Capacity:  22050,
		Pushed:    1000,
		Dropped:   50,
		Pulls:     30,
		Underruns: 2,
		Silent:    1,
		Listeners: 3,
	})

	if model.queued != 2205 || model.capacity != 22050 {
		t.Errorf("expected queue 2205/22050, got %d/%d", model.queued, model.capacity)
	}
	if model.pushed != 1000 || model.dropped != 50 {
		t.Errorf("expected pushed 1000 dropped 50, got %d %d", model.pushed, model.dropped)
	}
	if model.pulls != 30 || model.underruns != 2 || model.silent != 1 {
		t.Errorf("unexpected pull counters: %d %d %d", model.pulls, model.underruns, model.silent)
	}
	if model.listeners != 3 {
		t.Errorf("expected 3 listeners, got %d", model.listeners)
	}
}

func TestStatusMsgRuntimeStats(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{Goroutines: 42, HeapMB: 1.5})

	if model.goroutines != 42 {
		t.Errorf("expected goroutines 42, got %d", model.goroutines)
	}
	if model.heapMB != 1.5 {
		t.Errorf("expected heap 1.5, got %v", model.heapMB)
	}
}

func TestHandleKeyVolume(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 100)

	updated, _ := model.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	model = updated.(Model)

	if model.volume != 95 {
		t.Errorf("expected volume 95, got %d", model.volume)
	}

	select {
	case change := <-controls.Changes:
		if change.Volume != 95 || change.Muted {
			t.Errorf("unexpected change: %+v", change)
		}
	default:
		t.Fatal("expected a volume change")
	}

	// Up at 100 is clamped and sends nothing
	model.volume = 100
	updated, _ = model.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	if model.volume != 100 {
		t.Errorf("expected volume 100, got %d", model.volume)
	}
	if len(controls.Changes) != 0 {
		t.Error("expected no change at max volume")
	}
}

func TestHandleKeyMuteAndPause(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 80)

	updated, _ := model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	model = updated.(Model)
	if !model.muted {
		t.Error("expected muted after m")
	}
	if change := <-controls.Changes; !change.Muted || change.Volume != 80 {
		t.Errorf("unexpected change: %+v", change)
	}

	updated, _ = model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	model = updated.(Model)
	if !model.paused {
		t.Error("expected paused after p")
	}
	if msg := <-controls.Pause; !msg.Paused {
		t.Error("expected pause message")
	}
}

func TestHandleKeyQuit(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 100)

	_, cmd := model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if len(controls.Quit) != 1 {
		t.Error("expected quit message")
	}
}

func TestNilControls(t *testing.T) {
	model := NewModel(nil, 100)
	// Must not panic
	model.handleKey(tea.KeyMsg{Type: tea.KeyDown})
	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
}

func TestView(t *testing.T) {
	model := NewModel(nil, 100)
	if model.View() != "Loading..." {
		t.Error("expected loading view before first resize")
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)

	open := true
	model.applyStatus(StatusMsg{
		Open:       &open,
		Backend:    "null",
		SampleRate: 44100,
		Channels:   1,
		BlockSize:  4410,
		Producer:   "square 440Hz",
		State:      "streaming",
	})

	view := model.View()
	for _, want := range []string{"Open on null", "44100Hz Mono", "square 440Hz", "streaming"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, total, width int
		want                string
	}{
		{50, 100, 10, "█████░░░░░"},
		{0, 100, 4, "░░░░"},
		{200, 100, 4, "████"},
		{5, 0, 3, "░░░"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, tt.total, tt.width); got != tt.want {
			t.Errorf("renderBar(%d, %d, %d) = %q, want %q", tt.value, tt.total, tt.width, got, tt.want)
		}
	}
}

func TestChannelName(t *testing.T) {
	if channelName(1) != "Mono" || channelName(2) != "Stereo" || channelName(6) != "6ch" {
		t.Error("unexpected channel names")
	}
}
