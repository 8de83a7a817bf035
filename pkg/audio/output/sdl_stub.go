//go:build !sdl

// ABOUTME: SDL stub when the SDL2 library is not available
// ABOUTME: Provides compile-time placeholder when built without the sdl tag
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// SDL output implementation (stub)
type SDL struct{}

// NewSDL creates a new SDL output
func NewSDL() *SDL {
	return &SDL{}
}

// Name identifies the backend
func (s *SDL) Name() string { return "sdl" }

// Negotiate always fails
func (s *SDL) Negotiate(desired audio.Format) (audio.Format, error) {
	return audio.Format{}, fmt.Errorf("%w: SDL support not enabled (build with -tags sdl)", ErrNoAudioSubsystem)
}

// Start always fails
func (s *SDL) Start(cb Callback) error {
	return fmt.Errorf("%w: SDL support not enabled (build with -tags sdl)", ErrNoAudioSubsystem)
}

// Stop is a no-op
func (s *SDL) Stop() error {
	return nil
}
