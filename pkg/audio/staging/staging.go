// ABOUTME: Byte staging buffer in front of the sample queue
// ABOUTME: Converts raw 8-bit, 16-bit or float PCM bytes to float samples in whole blocks
package staging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

// DefaultSize is the staging capacity in bytes: one default block of 16-bit samples
const DefaultSize = audio.DefaultBlockSize * 2

// ErrStagingFull is returned when bytes do not fit in the staging buffer
var ErrStagingFull = errors.New("staging buffer full")

// Encoding is the layout of staged bytes
type Encoding int

const (
	// EncodingU8 is unsigned 8-bit, 128 is silence
	EncodingU8 Encoding = iota
	// EncodingS16LE is signed 16-bit little-endian
	EncodingS16LE
	// EncodingF32LE is IEEE-754 float32 little-endian
	EncodingF32LE
)

// Width returns bytes per sample
func (e Encoding) Width() int {
	switch e {
	case EncodingS16LE:
		return 2
	case EncodingF32LE:
		return 4
	default:
		return 1
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingU8:
		return "u8"
	case EncodingS16LE:
		return "s16le"
	case EncodingF32LE:
		return "f32le"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding maps a config string to an encoding
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "u8":
		return EncodingU8, nil
	case "", "s16le", "s16":
		return EncodingS16LE, nil
	case "f32le", "f32":
		return EncodingF32LE, nil
	default:
		return EncodingU8, fmt.Errorf("unknown sample encoding: %q", s)
	}
}

// Pusher accepts converted samples
type Pusher interface {
	Push(samples []float32) error
}

// Config configures a Stager
type Config struct {
	Encoding     Encoding
	BlockSamples int // samples pushed per flush; defaults to audio.DefaultBlockSize
	Size         int // ring capacity in bytes; defaults to DefaultSize
}

// Stager collects raw PCM bytes and pushes them as float samples
type Stager struct {
	mu         sync.Mutex
	ring       *ringbuffer.RingBuffer
	enc        Encoding
	sink       Pusher
	flushBytes int
	raw        []byte
	samples    []float32
}

// New creates a stager pushing into sink
func New(sink Pusher, cfg Config) *Stager {
	if cfg.BlockSamples <= 0 {
		cfg.BlockSamples = audio.DefaultBlockSize
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}

	width := cfg.Encoding.Width()
	size := max(cfg.Size, width)
	flushBytes := min(cfg.BlockSamples*width, size-size%width)

	return &Stager{
		ring:       ringbuffer.New(size),
		enc:        cfg.Encoding,
		sink:       sink,
		flushBytes: flushBytes,
		raw:        make([]byte, size),
		samples:    make([]float32, size/width),
	}
}

// Stage copies as much of p as fits without pushing anything. It returns
// ErrStagingFull if some of p was left over.
func (s *Stager) Stage(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage(p)
}

func (s *Stager) stage(p []byte) (int, error) {
	n := min(len(p), s.ring.Free())
	if n > 0 {
		if _, err := s.ring.Write(p[:n]); err != nil {
			return 0, fmt.Errorf("staging write: %w", err)
		}
	}
	if n < len(p) {
		return n, ErrStagingFull
	}
	return n, nil
}

// Write stages p and pushes every whole block. It implements io.Writer.
func (s *Stager) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for {
		n, err := s.stage(p[written:])
		written += n

		pushed := false
		for s.ring.Length() >= s.flushBytes {
			if err := s.push(s.flushBytes); err != nil {
				return written, err
			}
			pushed = true
		}

		if err == nil {
			return written, nil
		}
		if n == 0 && !pushed {
			return written, err
		}
	}
}

// Flush pushes every complete staged sample. A trailing partial sample stays
// staged.
func (s *Stager) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	width := s.enc.Width()
	complete := s.ring.Length() - s.ring.Length()%width
	if complete == 0 {
		return nil
	}
	return s.push(complete)
}

// Len returns the number of staged bytes
func (s *Stager) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Length()
}

// Reset discards everything staged
func (s *Stager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Reset()
}

// Encoding returns the staged byte layout
func (s *Stager) Encoding() Encoding {
	return s.enc
}

// push converts nbytes from the ring and hands them to the sink (must hold s.mu)
func (s *Stager) push(nbytes int) error {
	raw := s.raw[:nbytes]
	if _, err := s.ring.Read(raw); err != nil {
		return fmt.Errorf("staging read: %w", err)
	}

	count := Decode(s.samples, raw, s.enc)
	return s.sink.Push(s.samples[:count])
}

// Decode converts whole samples of src into dst and returns how many were
// written. dst must have room for len(src)/enc.Width() samples.
func Decode(dst []float32, src []byte, enc Encoding) int {
	width := enc.Width()
	count := len(src) / width

	switch enc {
	case EncodingU8:
		for i := range count {
			dst[i] = audio.SampleFromU8(src[i])
		}
	case EncodingS16LE:
		for i := range count {
			dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(src[i*2:])))
		}
	case EncodingF32LE:
		for i := range count {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	}
	return count
}
