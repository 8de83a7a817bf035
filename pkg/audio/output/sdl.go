//go:build sdl

// ABOUTME: SDL2 audio output implementation
// ABOUTME: Queues float32 blocks on an SDL audio device on a block clock
package output

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/veandco/go-sdl2/sdl"
)

// sdlQueuedBlocks is how many blocks may wait in SDL's queue before the clock
// skips a pull
const sdlQueuedBlocks = 2

// SDL output implementation using SDL2 queued audio
type SDL struct {
	mu     sync.Mutex
	device sdl.AudioDeviceID
	format audio.Format
	guard  callbackGuard
	pump   *pump
	open   bool
}

// NewSDL creates a new SDL output
func NewSDL() *SDL {
	return &SDL{}
}

// Name identifies the backend
func (s *SDL) Name() string { return "sdl" }

// Negotiate initializes the audio subsystem and opens the default device
func (s *SDL) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}
	if desired.Channels > 2 || desired.BlockSize > math.MaxUint16 {
		return audio.Format{}, fmt.Errorf("%w: sdl output needs at most 2 channels and 65535 frames per block, got %v", ErrUnsupportedFormat, desired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sdl.Init(sdl.INIT_AUDIO); err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to initialize SDL audio: %v", ErrNoAudioSubsystem, err)
	}

	want := sdl.AudioSpec{
		Freq:     int32(desired.SampleRate),
		Format:   sdl.AUDIO_F32LSB,
		Channels: uint8(desired.Channels),
		Samples:  uint16(desired.BlockSize),
	}
	var have sdl.AudioSpec

	device, err := sdl.OpenAudioDevice("", false, &want, &have, 0)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_AUDIO)
		return audio.Format{}, fmt.Errorf("%w: failed to open SDL audio device: %v", ErrNoPlaybackDevice, err)
	}

	s.device = device
	s.open = true
	s.format = desired

	log.Printf("Audio output initialized: %v (sdl, device buffer %d frames)", desired, have.Samples)
	return desired, nil
}

// Start unpauses the device and begins queueing blocks
func (s *SDL) Start(cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return fmt.Errorf("%w: device not negotiated", ErrNoPlaybackDevice)
	}

	s.guard.set(cb)

	device := s.device
	block := make([]float32, s.format.BlockSamples())
	data := make([]byte, len(block)*4)
	limit := uint32(len(data) * sdlQueuedBlocks)

	sdl.PauseAudioDevice(device, false)
	s.pump = startPump(s.Name(), s.format.BlockDuration(), func() bool {
		if sdl.GetQueuedAudioSize(device) >= limit {
			return true
		}
		s.guard.call(block)
		audio.PutFloat32LE(data, block)
		if err := sdl.QueueAudio(device, data); err != nil {
			log.Printf("sdl: queue audio failed: %v", err)
			return false
		}
		return true
	})
	return nil
}

// Stop closes the device and shuts the audio subsystem down
func (s *SDL) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guard.stop()
	s.pump.Stop()
	s.pump = nil

	if s.open {
		sdl.PauseAudioDevice(s.device, true)
		sdl.ClearQueuedAudio(s.device)
		sdl.CloseAudioDevice(s.device)
		sdl.QuitSubSystem(sdl.INIT_AUDIO)
		s.open = false
	}
	return nil
}
