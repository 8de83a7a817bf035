// ABOUTME: Producer-facing handle to an open device
// ABOUTME: Pushes samples through the gate, paces the producer and closes the device
package device

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/gate"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/queue"
)

// Stats contains playback statistics
type Stats struct {
	output.Stats

	Queued   int    // samples waiting in the queue
	Capacity int    // queue capacity in samples
	Pushed   uint64 // samples accepted from the producer
	Dropped  uint64 // samples discarded by the drop-oldest policy
	Volume   int
	Muted    bool
	Closed   bool
}

// Handle is an open device
type Handle struct {
	id        uuid.UUID
	lifecycle *Lifecycle
	format    audio.Format
	gate      *gate.Gate
	drain     *output.Drain

	pushed  atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

// ID identifies this open instance in logs
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Format returns the negotiated format
func (h *Handle) Format() audio.Format {
	return h.format
}

// Push appends samples for playback, waiting for space if the overflow
// policy is block
func (h *Handle) Push(samples []float32) error {
	return h.PushContext(context.Background(), samples)
}

// PushContext is Push with a context bounding the wait for space
func (h *Handle) PushContext(ctx context.Context, samples []float32) error {
	if h.closed.Load() {
		return ErrDeviceClosed
	}

	dropped, err := h.gate.Append(ctx, samples)
	if dropped > 0 {
		h.dropped.Add(uint64(dropped))
	}
	if err != nil {
		if errors.Is(err, gate.ErrClosed) {
			return ErrDeviceClosed
		}
		return err
	}

	h.pushed.Add(uint64(len(samples)))
	return nil
}

// WaitBelow blocks until fewer than watermark samples are queued
func (h *Handle) WaitBelow(ctx context.Context, watermark int) error {
	if err := h.gate.WaitBelow(ctx, watermark); err != nil {
		if errors.Is(err, gate.ErrClosed) {
			return ErrDeviceClosed
		}
		return err
	}
	return nil
}

// Clear discards every queued sample
func (h *Handle) Clear() error {
	err := h.gate.With(func(q *queue.Queue) {
		q.Reset()
	})
	if errors.Is(err, gate.ErrClosed) {
		return ErrDeviceClosed
	}
	return err
}

// SetVolume sets the volume (0-100)
func (h *Handle) SetVolume(volume int) error {
	if h.closed.Load() {
		return ErrDeviceClosed
	}
	h.drain.SetVolume(volume)
	return nil
}

// SetMuted sets mute state
func (h *Handle) SetMuted(muted bool) error {
	if h.closed.Load() {
		return ErrDeviceClosed
	}
	h.drain.SetMuted(muted)
	return nil
}

// Stats returns a snapshot of the counters. It works after Close.
func (h *Handle) Stats() Stats {
	return Stats{
		Stats:    h.drain.Stats(),
		Queued:   h.gate.Len(),
		Capacity: h.gate.Cap(),
		Pushed:   h.pushed.Load(),
		Dropped:  h.dropped.Load(),
		Volume:   h.drain.Volume(),
		Muted:    h.drain.Muted(),
		Closed:   h.closed.Load(),
	}
}

// Closed reports whether Close has been called
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Close stops playback and releases the device. A callback racing Close
// sees the closed gate and plays silence. Safe to call repeatedly.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.gate.Close()

		backend := h.lifecycle.backend
		if err := backend.Stop(); err != nil {
			log.Printf("Warning: %s output stop error: %v", backend.Name(), err)
		}

		h.lifecycle.release(h)

		stats := h.drain.Stats()
		log.Printf("Device %s closed: %d pulls, %d underruns, %d silent, %d dropped",
			h.id, stats.Pulls, stats.Underruns, stats.Silent, h.dropped.Load())
	})
	return nil
}
