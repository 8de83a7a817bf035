// ABOUTME: Device lifecycle owning negotiation, buffering and the backend
// ABOUTME: Open builds the queue, gate and drain for the granted format; one handle at a time
package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/gate"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/queue"
)

// DefaultVolume is the volume used when Config.Volume is zero
const DefaultVolume = 100

// Config holds device configuration
type Config struct {
	// Format is the desired output format (default: 44100Hz mono, 4410 frames)
	Format audio.Format

	// CapacityMs is the queue size in milliseconds (default: 500)
	CapacityMs int

	// Overflow selects what a push does when the queue is full (default: block)
	Overflow queue.Overflow

	// Volume is the initial volume, 1-100. Zero selects DefaultVolume;
	// set Muted to start silent.
	Volume int

	// Muted starts the device muted
	Muted bool
}

// Lifecycle opens and closes one backend
type Lifecycle struct {
	backend output.Backend
	config  Config

	mu      sync.Mutex
	current *Handle
}

// New creates a lifecycle for backend. Nothing is opened until Open.
func New(backend output.Backend, config Config) *Lifecycle {
	if config.Format == (audio.Format{}) {
		config.Format = audio.DefaultFormat()
	}
	if config.CapacityMs == 0 {
		config.CapacityMs = 500
	}
	if config.Volume == 0 {
		config.Volume = DefaultVolume
	}

	return &Lifecycle{
		backend: backend,
		config:  config,
	}
}

// Backend returns the backend this lifecycle drives
func (l *Lifecycle) Backend() output.Backend {
	return l.backend
}

// Open negotiates a format, starts the backend and returns the handle the
// producer pushes through. Only one handle may be open at a time.
func (l *Lifecycle) Open(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		return nil, ErrDeviceBusy
	}

	desired := l.config.Format
	if err := desired.Validate(); err != nil {
		return nil, errors.Join(ErrUnsupportedFormat, err)
	}

	granted, err := l.backend.Negotiate(desired)
	if err != nil {
		l.stopBackend()
		return nil, fmt.Errorf("negotiate %s output: %w", l.backend.Name(), err)
	}
	if err := granted.Validate(); err != nil {
		l.stopBackend()
		return nil, fmt.Errorf("%s output granted %v: %w", l.backend.Name(), granted, errors.Join(ErrUnsupportedFormat, err))
	}
	if granted != desired {
		log.Printf("%s output granted %v (requested %v)", l.backend.Name(), granted, desired)
	}

	capacity := max(granted.SamplesFor(time.Duration(l.config.CapacityMs)*time.Millisecond), granted.BlockSamples())
	q := queue.New(capacity, l.config.Overflow)
	g := gate.New(q, gate.ChunkSize(granted.BlockSamples()))

	drain := output.NewDrain(granted, g)
	drain.SetVolume(l.config.Volume)
	drain.SetMuted(l.config.Muted)

	h := &Handle{
		id:        uuid.New(),
		lifecycle: l,
		format:    granted,
		gate:      g,
		drain:     drain,
	}

	if err := l.backend.Start(drain.Callback()); err != nil {
		g.Close()
		l.stopBackend()
		return nil, fmt.Errorf("start %s output: %w", l.backend.Name(), err)
	}

	l.current = h
	log.Printf("Device %s opened: %s output, %v, queue %d samples (%s)",
		h.id, l.backend.Name(), granted, capacity, l.config.Overflow)
	return h, nil
}

// Current returns the open handle, or nil
func (l *Lifecycle) Current() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// release forgets h once it has closed
func (l *Lifecycle) release(h *Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == h {
		l.current = nil
	}
}

// stopBackend undoes a partial open (must hold l.mu)
func (l *Lifecycle) stopBackend() {
	if err := l.backend.Stop(); err != nil {
		log.Printf("Warning: %s output stop error: %v", l.backend.Name(), err)
	}
}
