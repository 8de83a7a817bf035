//go:build !linux

// ABOUTME: ALSA stub for platforms without ALSA
// ABOUTME: Negotiation always reports a missing audio subsystem
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// ALSA output implementation (stub)
type ALSA struct {
	Card   uint
	Device uint
}

// NewALSA creates a new ALSA output
func NewALSA(card, device uint) *ALSA {
	return &ALSA{Card: card, Device: device}
}

// Name identifies the backend
func (a *ALSA) Name() string { return "alsa" }

// Negotiate always fails
func (a *ALSA) Negotiate(desired audio.Format) (audio.Format, error) {
	return audio.Format{}, fmt.Errorf("%w: ALSA is only available on Linux", ErrNoAudioSubsystem)
}

// Start always fails
func (a *ALSA) Start(cb Callback) error {
	return fmt.Errorf("%w: ALSA is only available on Linux", ErrNoAudioSubsystem)
}

// Stop is a no-op
func (a *ALSA) Stop() error {
	return nil
}
