//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a block-sized PortAudio stream callback
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	mu          sync.Mutex
	stream      *portaudio.Stream
	guard       callbackGuard
	initialized bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Negotiate initializes PortAudio and opens the default output stream with
// one block per buffer
func (p *PortAudio) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to initialize portaudio: %v", ErrNoAudioSubsystem, err)
	}
	p.initialized = true

	stream, err := portaudio.OpenDefaultStream(0, desired.Channels, float64(desired.SampleRate), desired.BlockSize, func(out []float32) {
		p.guard.call(out)
	})
	if err != nil {
		portaudio.Terminate()
		p.initialized = false
		return audio.Format{}, fmt.Errorf("%w: failed to open stream: %v", ErrNoPlaybackDevice, err)
	}

	p.stream = stream
	log.Printf("Audio output initialized: %v (portaudio)", desired)
	return desired, nil
}

// Start starts the stream
func (p *PortAudio) Start(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("%w: stream not negotiated", ErrNoPlaybackDevice)
	}
	p.guard.set(cb)
	return p.stream.Start()
}

// Stop releases resources
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.guard.stop()
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			log.Printf("Warning: portaudio stream stop error: %v", err)
		}
		if err := p.stream.Close(); err != nil {
			log.Printf("Warning: portaudio stream close error: %v", err)
		}
		p.stream = nil
	}
	if p.initialized {
		p.initialized = false
		return portaudio.Terminate()
	}
	return nil
}
