// ABOUTME: ALSA output implementation for Linux
// ABOUTME: Writes float32 blocks to a kernel PCM device; blocking writes pace the callback
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/gen2brain/alsa"
)

// alsaPeriods is the number of block-sized periods in the device ring
const alsaPeriods = 4

// ALSA output implementation using the pure-Go ALSA bindings
type ALSA struct {
	Card   uint
	Device uint

	mu       sync.Mutex
	pcm      *alsa.PCM
	format   audio.Format
	guard    callbackGuard
	stopChan chan struct{}
	done     chan struct{}
}

// NewALSA creates a new ALSA output on hw:card,device
func NewALSA(card, device uint) *ALSA {
	return &ALSA{Card: card, Device: device}
}

// Name identifies the backend
func (a *ALSA) Name() string { return "alsa" }

// Negotiate opens the PCM device with one block per period
func (a *ALSA) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}
	if desired.Channels > 2 {
		return audio.Format{}, fmt.Errorf("%w: alsa output supports 1 or 2 channels, got %d", ErrUnsupportedFormat, desired.Channels)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm != nil {
		a.pcm.Close()
		a.pcm = nil
	}

	config := alsa.Config{
		Channels:    uint32(desired.Channels),
		Rate:        uint32(desired.SampleRate),
		PeriodSize:  uint32(desired.BlockSize),
		PeriodCount: alsaPeriods,
		Format:      alsa.SNDRV_PCM_FORMAT_FLOAT_LE,
	}

	pcm, err := alsa.PcmOpen(a.Card, a.Device, alsa.PCM_OUT, &config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return audio.Format{}, fmt.Errorf("%w: no ALSA device hw:%d,%d: %v", ErrNoAudioSubsystem, a.Card, a.Device, err)
		}
		return audio.Format{}, fmt.Errorf("%w: failed to open hw:%d,%d: %v", ErrNoPlaybackDevice, a.Card, a.Device, err)
	}

	granted := audio.Format{
		SampleRate: int(pcm.Rate()),
		Channels:   int(pcm.Channels()),
		BlockSize:  int(pcm.PeriodSize()),
	}
	if err := granted.Validate(); err != nil {
		pcm.Close()
		return audio.Format{}, fmt.Errorf("%w: device granted %v", ErrUnsupportedFormat, granted)
	}

	a.pcm = pcm
	a.format = granted

	log.Printf("Audio output initialized: %v (alsa hw:%d,%d)", granted, a.Card, a.Device)
	return granted, nil
}

// Start runs the write loop
func (a *ALSA) Start(cb Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pcm == nil {
		return fmt.Errorf("%w: device not negotiated", ErrNoPlaybackDevice)
	}

	a.guard.set(cb)
	a.stopChan = make(chan struct{})
	a.done = make(chan struct{})

	go a.writeLoop(a.pcm, a.stopChan, a.done)
	return nil
}

func (a *ALSA) writeLoop(pcm *alsa.PCM, stopChan, done chan struct{}) {
	defer close(done)

	block := make([]float32, a.format.BlockSamples())
	for {
		select {
		case <-stopChan:
			return
		default:
		}

		if !a.guard.call(block) {
			return
		}
		if _, err := pcm.Write(block); err != nil {
			select {
			case <-stopChan:
			default:
				log.Printf("alsa: write failed: %v", err)
			}
			return
		}
	}
}

// Stop halts the write loop and closes the device
func (a *ALSA) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.guard.stop()
	if a.stopChan != nil {
		close(a.stopChan)
		a.stopChan = nil
	}
	if a.pcm != nil {
		// Unblocks a pending write
		if err := a.pcm.Stop(); err != nil {
			log.Printf("Warning: alsa stop error: %v", err)
		}
	}
	if a.done != nil {
		<-a.done
		a.done = nil
	}
	if a.pcm != nil {
		err := a.pcm.Close()
		a.pcm = nil
		if err != nil {
			return fmt.Errorf("failed to close alsa device: %w", err)
		}
	}
	return nil
}
