// ABOUTME: Null audio output that discards samples on a real-time clock
// ABOUTME: Used headless and when no sound hardware is present
package output

import (
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// Null pulls one block per block period and throws it away
type Null struct {
	format audio.Format
	guard  callbackGuard
	pump   *pump
	mu     sync.Mutex
}

// NewNull creates a new Null output
func NewNull() *Null {
	return &Null{}
}

// Name identifies the backend
func (n *Null) Name() string { return "null" }

// Negotiate grants any valid format unchanged
func (n *Null) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}
	n.format = desired
	return desired, nil
}

// Start begins the block clock
func (n *Null) Start(cb Callback) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.guard.set(cb)
	block := make([]float32, n.format.BlockSamples())
	n.pump = startPump(n.Name(), n.format.BlockDuration(), func() bool {
		n.guard.call(block)
		return true
	})
	return nil
}

// Stop halts the clock
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.guard.stop()
	n.pump.Stop()
	return nil
}
