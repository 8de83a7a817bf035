// ABOUTME: Audio output backend interface definition
// ABOUTME: Common contract for pull-based playback backends and their negotiation errors
package output

import (
	"errors"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// Negotiation errors. Backends wrap these so callers can use errors.Is.
var (
	ErrNoAudioSubsystem  = errors.New("audio subsystem unavailable")
	ErrNoPlaybackDevice  = errors.New("no playback device")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Callback fills out with the next block of samples. out always holds
// exactly one block (Format.BlockSamples values).
type Callback func(out []float32)

// Backend is a pull-based audio device
type Backend interface {
	// Name identifies the backend in logs and the UI
	Name() string

	// Negotiate asks the device for desired and returns the format it granted
	Negotiate(desired audio.Format) (audio.Format, error)

	// Start begins invoking cb on a goroutine owned by the backend.
	// It is called at most once, after a successful Negotiate.
	Start(cb Callback) error

	// Stop halts the callback and releases the device. It returns only once
	// no invocation of cb is in flight. Safe to call repeatedly, and before
	// Start.
	Stop() error
}

// checkFormat rejects formats no backend can honour
func checkFormat(f audio.Format) error {
	if err := f.Validate(); err != nil {
		return errors.Join(ErrUnsupportedFormat, err)
	}
	return nil
}
