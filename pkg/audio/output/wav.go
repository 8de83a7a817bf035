// ABOUTME: WAV file output implementation
// ABOUTME: Records pulled blocks as 16-bit PCM, either on the block clock or driven by the caller
package output

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

// ErrNotOffline is returned by Render on a clocked WAV output
var ErrNotOffline = errors.New("wav output is clocked")

// Wav writes every pulled block to a WAV file.
//
// A clocked Wav pulls once per block period like a sound card. An offline
// Wav never pulls on its own; the owner drives it with Render.
type Wav struct {
	path    string
	clocked bool

	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	format  audio.Format
	guard   callbackGuard
	pump    *pump
	block   []float32
	buf     *goaudio.IntBuffer
	blocks  int
}

// NewWav creates a WAV output writing to path
func NewWav(path string, clocked bool) *Wav {
	return &Wav{path: path, clocked: clocked}
}

// Name identifies the backend
func (w *Wav) Name() string { return "wav" }

// Clocked reports whether the output pulls on its own
func (w *Wav) Clocked() bool { return w.clocked }

// Negotiate creates the output file
func (w *Wav) Negotiate(desired audio.Format) (audio.Format, error) {
	if err := checkFormat(desired); err != nil {
		return audio.Format{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		w.finish()
	}

	f, err := os.Create(w.path)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: failed to create %s: %v", ErrNoPlaybackDevice, w.path, err)
	}

	w.file = f
	w.encoder = wav.NewEncoder(f, desired.SampleRate, wavBitDepth, desired.Channels, wavFormatPCM)
	w.format = desired
	w.block = make([]float32, desired.BlockSamples())
	w.buf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: desired.Channels,
			SampleRate:  desired.SampleRate,
		},
		Data:           make([]int, desired.BlockSamples()),
		SourceBitDepth: wavBitDepth,
	}
	w.blocks = 0

	log.Printf("Recording output to %s: %v", w.path, desired)
	return desired, nil
}

// Start installs the callback and, when clocked, starts pulling
func (w *Wav) Start(cb Callback) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return fmt.Errorf("%w: file not negotiated", ErrNoPlaybackDevice)
	}

	w.guard.set(cb)
	if w.clocked {
		w.pump = startPump(w.Name(), w.format.BlockDuration(), func() bool {
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.renderBlock() == nil
		})
	}
	return nil
}

// Render pulls and records blocks one after another. Only valid on an
// offline Wav.
func (w *Wav) Render(blocks int) error {
	if w.clocked {
		return ErrNotOffline
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for range blocks {
		if err := w.renderBlock(); err != nil {
			return err
		}
	}
	return nil
}

// Blocks returns how many blocks have been recorded
func (w *Wav) Blocks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocks
}

// renderBlock pulls one block and encodes it (must hold w.mu)
func (w *Wav) renderBlock() error {
	if w.encoder == nil {
		return fmt.Errorf("%w: file closed", ErrNoPlaybackDevice)
	}
	if !w.guard.call(w.block) {
		return fmt.Errorf("%w: output stopped", ErrNoPlaybackDevice)
	}

	for i, s := range w.block {
		w.buf.Data[i] = int(audio.SampleToInt16(s))
	}
	if err := w.encoder.Write(w.buf); err != nil {
		log.Printf("wav: write failed: %v", err)
		return fmt.Errorf("failed to write block: %w", err)
	}
	w.blocks++
	return nil
}

// Stop stops pulling and finalizes the file header
func (w *Wav) Stop() error {
	w.guard.stop()

	// The pump step takes w.mu, so stop it before locking
	w.mu.Lock()
	p := w.pump
	w.pump = nil
	w.mu.Unlock()
	p.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finish()
}

// finish closes the encoder and file (must hold w.mu)
func (w *Wav) finish() error {
	if w.encoder == nil {
		return nil
	}

	encErr := w.encoder.Close()
	fileErr := w.file.Close()
	w.encoder = nil
	w.file = nil

	if encErr != nil {
		return fmt.Errorf("failed to finalize %s: %w", w.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, fileErr)
	}
	return nil
}
