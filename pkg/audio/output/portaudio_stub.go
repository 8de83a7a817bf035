//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string { return "portaudio" }

// Negotiate always fails
func (p *PortAudio) Negotiate(desired audio.Format) (audio.Format, error) {
	return audio.Format{}, fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrNoAudioSubsystem)
}

// Start always fails
func (p *PortAudio) Start(cb Callback) error {
	return fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrNoAudioSubsystem)
}

// Stop is a no-op
func (p *PortAudio) Stop() error {
	return nil
}
