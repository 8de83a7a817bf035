// ABOUTME: PulseAudio output implementation
// ABOUTME: Native pulse protocol client fed through a float32 reader
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/jfreymuth/pulse"
)

// Pulse output implementation using the jfreymuth/pulse client
type Pulse struct {
	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
	format audio.Format
	guard  callbackGuard
}

// NewPulse creates a new Pulse output
func NewPulse() *Pulse {
	return &Pulse{}
}

// Name identifies the backend
func (p *Pulse) Name() string { return "pulse" }

// Negotiate connects to the server and creates a playback stream. The server
// resamples, so the requested rate is granted as is.
func (p *Pulse) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	var layout pulse.PlaybackOption
	switch desired.Channels {
	case 1:
		layout = pulse.PlaybackMono
	case 2:
		layout = pulse.PlaybackStereo
	default:
		return audio.Format{}, fmt.Errorf("%w: pulse output supports 1 or 2 channels, got %d", ErrUnsupportedFormat, desired.Channels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.release()

	client, err := pulse.NewClient()
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to connect to pulse server: %v", ErrNoAudioSubsystem, err)
	}

	reader := newBlockReader(&p.guard, desired)
	stream, err := client.NewPlayback(
		pulse.Float32Reader(func(out []float32) (int, error) {
			return reader.readSamples(out), nil
		}),
		pulse.PlaybackSampleRate(desired.SampleRate),
		layout,
		pulse.PlaybackLatency(desired.BlockDuration().Seconds()),
	)
	if err != nil {
		client.Close()
		return audio.Format{}, fmt.Errorf("%w: failed to create playback stream: %v", ErrNoPlaybackDevice, err)
	}

	p.client = client
	p.stream = stream
	p.format = desired

	log.Printf("Audio output initialized: %v (pulse)", desired)
	return desired, nil
}

// Start starts the playback stream
func (p *Pulse) Start(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("%w: stream not negotiated", ErrNoPlaybackDevice)
	}

	p.guard.set(cb)
	p.stream.Start()
	return nil
}

// Stop stops the stream and disconnects
func (p *Pulse) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.guard.stop()
	if p.stream != nil && p.stream.Underflow() {
		log.Printf("pulse: stream underflowed during playback")
	}
	p.release()
	return nil
}

// release closes the stream and client (must hold p.mu)
func (p *Pulse) release() {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
