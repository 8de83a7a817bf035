// ABOUTME: Manually clocked audio output
// ABOUTME: The owner triggers each pull, for tests and offline rendering
package output

import (
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// Manual invokes the callback only when Pull is called
type Manual struct {
	// Grant, when set, replaces the negotiated format
	Grant *audio.Format
	// NegotiateErr, when set, is returned from Negotiate
	NegotiateErr error
	// StartErr, when set, is returned from Start
	StartErr error
	// StopErr, when set, is returned from Stop
	StopErr error

	mu      sync.Mutex
	format  audio.Format
	cb      Callback
	started bool
	stopped bool
	stops   int
}

// NewManual creates a new Manual output
func NewManual() *Manual {
	return &Manual{}
}

// Name identifies the backend
func (m *Manual) Name() string { return "manual" }

// Negotiate grants desired, or Grant when set
func (m *Manual) Negotiate(desired audio.Format) (audio.Format, error) {
	if m.NegotiateErr != nil {
		return audio.Format{}, m.NegotiateErr
	}
	granted := desired
	if m.Grant != nil {
		granted = *m.Grant
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.format = granted
	return granted, nil
}

// Start records the callback
func (m *Manual) Start(cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartErr != nil {
		return m.StartErr
	}
	m.cb = cb
	m.started = true
	m.stopped = false
	return nil
}

// Pull runs the callback once and returns the block it produced. It returns
// nil if the backend is not running.
func (m *Manual) Pull() []float32 {
	m.mu.Lock()
	size := m.format.BlockSamples()
	m.mu.Unlock()

	out := make([]float32, size)
	if !m.PullInto(out) {
		return nil
	}
	return out
}

// PullInto runs the callback once into out and reports whether it ran
func (m *Manual) PullInto(out []float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return false
	}
	m.cb(out)
	return true
}

// Stop ends pulling. Pulls after Stop return nil.
func (m *Manual) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	m.stops++
	return m.StopErr
}

// Stops returns how many times Stop was called
func (m *Manual) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Running reports whether pulls currently reach the callback
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}
