// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a float32 device and block-sized periods
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	guard    callbackGuard
	reader   *blockReader
	scratch  []float32
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Name identifies the backend
func (m *Malgo) Name() string { return "malgo" }

// Negotiate opens the default playback device. The device may grant a
// different rate or channel count than requested.
func (m *Malgo) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return audio.Format{}, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrNoAudioSubsystem, err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(desired.Channels)
	deviceConfig.SampleRate = uint32(desired.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(desired.BlockSize)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: m.dataCallback,
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to initialize playback device: %v", ErrNoPlaybackDevice, err)
	}

	granted := audio.Format{
		SampleRate: int(device.SampleRate()),
		Channels:   int(device.PlaybackChannels()),
		BlockSize:  desired.BlockSize,
	}
	if err := granted.Validate(); err != nil {
		device.Uninit()
		return audio.Format{}, fmt.Errorf("%w: device granted %v", ErrUnsupportedFormat, granted)
	}

	m.device = device
	m.format = granted
	m.reader = newBlockReader(&m.guard, granted)
	m.scratch = make([]float32, granted.BlockSamples())

	log.Printf("Audio output initialized: %v (malgo/F32)", granted)
	return granted, nil
}

// Start starts the device
func (m *Malgo) Start(cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("%w: device not negotiated", ErrNoPlaybackDevice)
	}

	m.guard.set(cb)
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput, pInput []byte, frameCount uint32) {
	count := int(frameCount) * m.format.Channels
	if cap(m.scratch) < count {
		m.scratch = make([]float32, count)
	}
	samples := m.scratch[:count]

	m.reader.readSamples(samples)
	audio.PutFloat32LE(pOutput, samples)
}

// Stop stops the device and releases the context
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.guard.stop()
	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	m.device.Uninit()
	m.device = nil
}
