// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 blocks to the oto player through the re-blocking reader
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows only one context per process, so it is shared between every
// Oto output and kept for the life of the process.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto output implementation using oto library
type Oto struct {
	mu     sync.Mutex
	format audio.Format
	guard  callbackGuard
	player *oto.Player
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Name identifies the backend
func (o *Oto) Name() string { return "oto" }

// Negotiate creates (or reuses) the process-wide oto context
func (o *Oto) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		// Can't reinitialize; continue with the existing context's rate and layout
		if otoFormat.SampleRate != desired.SampleRate || otoFormat.Channels != desired.Channels {
			log.Printf("Warning: oto context already running at %v, ignoring requested %v", otoFormat, desired)
		}
		granted := otoFormat
		granted.BlockSize = desired.BlockSize
		o.format = granted
		return granted, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   desired.SampleRate,
		ChannelCount: desired.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   desired.BlockDuration(),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to create oto context: %v", ErrNoAudioSubsystem, err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = desired
	o.format = desired

	log.Printf("Audio output initialized: %v (oto)", desired)
	return desired, nil
}

// Start creates a player that pulls whole blocks from cb
func (o *Oto) Start(cb Callback) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	otoMu.Lock()
	ctx := otoCtx
	otoMu.Unlock()
	if ctx == nil {
		return fmt.Errorf("%w: oto context not initialized", ErrNoPlaybackDevice)
	}

	o.guard.set(cb)
	o.player = ctx.NewPlayer(newBlockReader(&o.guard, o.format))
	o.player.Play()
	return nil
}

// Stop silences the player and releases it
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.guard.stop()
	if o.player == nil {
		return nil
	}

	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}
