// ABOUTME: Device error values
// ABOUTME: Sentinels returned by Open and by operations on a closed handle
package device

import (
	"errors"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
)

var (
	// ErrNoAudioSubsystem means the backend's audio library could not start
	ErrNoAudioSubsystem = output.ErrNoAudioSubsystem

	// ErrNoPlaybackDevice means no playback device could be opened
	ErrNoPlaybackDevice = output.ErrNoPlaybackDevice

	// ErrUnsupportedFormat means the desired or granted format is unusable
	ErrUnsupportedFormat = output.ErrUnsupportedFormat

	// ErrDeviceClosed is returned by every handle operation after Close
	ErrDeviceClosed = errors.New("device closed")

	// ErrDeviceBusy is returned by Open while another handle is open
	ErrDeviceBusy = errors.New("device already open")
)
