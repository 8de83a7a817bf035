// ABOUTME: Test signal generator standing in for an emulated sound unit
// ABOUTME: Renders square, pulse, triangle, sine or LFSR noise into raw PCM bytes
package tone

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/staging"
)

// Waveform selects the generated shape
type Waveform int

const (
	Square Waveform = iota
	Triangle
	Sine
	Noise
)

func (w Waveform) String() string {
	switch w {
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Sine:
		return "sine"
	case Noise:
		return "noise"
	default:
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
}

// ParseWaveform maps a config string to a waveform. "pulse" is a square
// wave whose duty is set separately.
func ParseWaveform(s string) (Waveform, error) {
	switch s {
	case "", "square", "pulse":
		return Square, nil
	case "triangle":
		return Triangle, nil
	case "sine":
		return Sine, nil
	case "noise":
		return Noise, nil
	default:
		return Square, fmt.Errorf("unknown waveform: %q", s)
	}
}

// Config describes a generator
type Config struct {
	Waveform   Waveform
	Frequency  float64 // Hz
	Duty       float64 // 0..1, square only
	Amplitude  float64 // 0..1
	SampleRate int
	Channels   int
	Encoding   staging.Encoding
}

// Generator produces one continuous signal. Not safe for concurrent use.
type Generator struct {
	cfg   Config
	phase float64 // 0..1
	step  float64
	lfsr  uint16
}

// New creates a generator
func New(cfg Config) (*Generator, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.Frequency < 0 || cfg.Frequency >= float64(cfg.SampleRate)/2 {
		return nil, fmt.Errorf("frequency %.1fHz out of range for %dHz", cfg.Frequency, cfg.SampleRate)
	}
	if cfg.Duty <= 0 || cfg.Duty >= 1 {
		cfg.Duty = 0.5
	}
	cfg.Amplitude = math.Max(0, math.Min(1, cfg.Amplitude))

	return &Generator{
		cfg:  cfg,
		step: cfg.Frequency / float64(cfg.SampleRate),
		lfsr: 0x7fff,
	}, nil
}

// Config returns the generator settings after defaults were applied
func (g *Generator) Config() Config {
	return g.cfg
}

// FrameBytes is the size of one frame in the output encoding
func (g *Generator) FrameBytes() int {
	return g.cfg.Channels * g.cfg.Encoding.Width()
}

// SetFrequency retunes the generator without resetting its phase
func (g *Generator) SetFrequency(hz float64) {
	g.cfg.Frequency = hz
	g.step = hz / float64(g.cfg.SampleRate)
}

// Next returns the next mono sample in [-1, 1]
func (g *Generator) Next() float32 {
	var v float64

	switch g.cfg.Waveform {
	case Square:
		if g.phase < g.cfg.Duty {
			v = 1
		} else {
			v = -1
		}
	case Triangle:
		v = 4*math.Abs(g.phase-0.5) - 1
	case Sine:
		v = math.Sin(2 * math.Pi * g.phase)
	case Noise:
		if g.lfsr&1 == 0 {
			v = 1
		} else {
			v = -1
		}
	}

	g.phase += g.step
	if g.phase >= 1 {
		g.phase -= math.Floor(g.phase)
		if g.cfg.Waveform == Noise {
			g.clockNoise()
		}
	}

	return float32(v * g.cfg.Amplitude)
}

// 15-bit LFSR with taps on bits 0 and 1
func (g *Generator) clockNoise() {
	bit := (g.lfsr ^ (g.lfsr >> 1)) & 1
	g.lfsr = (g.lfsr >> 1) | (bit << 14)
}

// Render fills dst with whole frames and returns the number of bytes written.
// The same value is written to every channel of a frame.
func (g *Generator) Render(dst []byte) int {
	width := g.cfg.Encoding.Width()
	frames := len(dst) / g.FrameBytes()

	off := 0
	for range frames {
		s := g.Next()
		for range g.cfg.Channels {
			encode(dst[off:], s, g.cfg.Encoding)
			off += width
		}
	}
	return off
}

func encode(dst []byte, s float32, enc staging.Encoding) {
	switch enc {
	case staging.EncodingU8:
		dst[0] = uint8(math.Round(float64(s)*127) + 128)
	case staging.EncodingS16LE:
		binary.LittleEndian.PutUint16(dst, uint16(audio.SampleToInt16(s)))
	case staging.EncodingF32LE:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(s))
	}
}
