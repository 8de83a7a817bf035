// ABOUTME: Drain callback moving queued samples into output blocks
// ABOUTME: Pads underruns with silence, applies software volume and keeps lock-free counters
package output

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/gate"
)

// State describes the most recent pull
type State int32

const (
	// StateIdle means the pull found nothing queued
	StateIdle State = iota
	// StateStreaming means a full block was delivered
	StateStreaming
	// StateUnderrun means a partial block was delivered and padded
	StateUnderrun
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateUnderrun:
		return "underrun"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a snapshot of the drain counters
type Stats struct {
	Pulls     uint64 // callback invocations
	Underruns uint64 // pulls that delivered a partial block
	Silent    uint64 // pulls that delivered nothing
	Delivered uint64 // samples copied from the queue
	Padded    uint64 // silence samples written
	State     State
}

// Drain is the output callback bound to one negotiated format and one gate
type Drain struct {
	format audio.Format
	block  int
	gate   *gate.Gate

	volume atomic.Int32
	muted  atomic.Bool
	gain   atomic.Uint32 // float32 bits

	pulls     atomic.Uint64
	underruns atomic.Uint64
	silent    atomic.Uint64
	delivered atomic.Uint64
	padded    atomic.Uint64
	state     atomic.Int32
}

// NewDrain creates a drain at full volume
func NewDrain(format audio.Format, g *gate.Gate) *Drain {
	d := &Drain{
		format: format,
		block:  format.BlockSamples(),
		gate:   g,
	}
	d.volume.Store(100)
	d.updateGain()
	return d
}

// Fill writes one block into out. It is the Callback handed to the backend.
//
// Queued samples are copied under the gate; everything after the copy runs
// unlocked. Whatever the queue could not supply is zero-filled, as is any
// part of out beyond one block.
func (d *Drain) Fill(out []float32) {
	want := min(len(out), d.block)
	n := d.gate.Drain(out[:want])
	clear(out[n:])

	d.pulls.Add(1)
	d.delivered.Add(uint64(n))
	d.padded.Add(uint64(len(out) - n))

	switch {
	case n == 0:
		d.silent.Add(1)
		d.state.Store(int32(StateIdle))
	case n < want:
		d.underruns.Add(1)
		d.state.Store(int32(StateUnderrun))
	default:
		d.state.Store(int32(StateStreaming))
	}

	if g := math.Float32frombits(d.gain.Load()); g != 1 {
		for i := range out[:n] {
			out[i] *= g
		}
	}
}

// Callback returns Fill as a backend callback
func (d *Drain) Callback() Callback {
	return d.Fill
}

// Format returns the format the drain is bound to
func (d *Drain) Format() audio.Format {
	return d.format
}

// Stats returns a snapshot of the counters
func (d *Drain) Stats() Stats {
	return Stats{
		Pulls:     d.pulls.Load(),
		Underruns: d.underruns.Load(),
		Silent:    d.silent.Load(),
		Delivered: d.delivered.Load(),
		Padded:    d.padded.Load(),
		State:     State(d.state.Load()),
	}
}

// SetVolume sets the volume (0-100)
func (d *Drain) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	d.volume.Store(int32(volume))
	d.updateGain()
}

// SetMuted sets mute state
func (d *Drain) SetMuted(muted bool) {
	d.muted.Store(muted)
	d.updateGain()
}

// Volume returns current volume
func (d *Drain) Volume() int {
	return int(d.volume.Load())
}

// Muted returns mute state
func (d *Drain) Muted() bool {
	return d.muted.Load()
}

func (d *Drain) updateGain() {
	gain := float32(getVolumeMultiplier(int(d.volume.Load()), d.muted.Load()))
	d.gain.Store(math.Float32bits(gain))
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
