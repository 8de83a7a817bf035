// ABOUTME: Audio type definitions
// ABOUTME: Defines the negotiated output format and sample conversions
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// Default output format requested from a backend
	DefaultSampleRate = 44100
	DefaultChannels   = 1
	DefaultBlockSize  = 4410 // frames per callback, ~100ms at 44.1kHz
)

// Format describes the output stream format. It is fixed once a backend
// grants it and never changes for the lifetime of the device.
type Format struct {
	SampleRate int
	Channels   int
	BlockSize  int // frames per callback invocation
}

// DefaultFormat returns the format requested when the caller does not specify one
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BlockSize:  DefaultBlockSize,
	}
}

// Validate reports whether every field of the format is usable
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BlockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", f.BlockSize)
	}
	return nil
}

// BlockSamples is the number of values in one callback block
func (f Format) BlockSamples() int {
	return f.BlockSize * f.Channels
}

// BlockDuration is the wall-clock time covered by one block
func (f Format) BlockDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.BlockSize) * time.Second / time.Duration(f.SampleRate)
}

// SamplesFor returns how many values cover the given duration
func (f Format) SamplesFor(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(f.Channels) * int64(d) / int64(time.Second))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%d frames", f.SampleRate, f.Channels, f.BlockSize)
}

// SampleFromU8 converts an unsigned 8-bit sample (128 is silence) to float
func SampleFromU8(b uint8) float32 {
	return (float32(b) - 128) / 128
}

// SampleFromInt16 converts a signed 16-bit sample to float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float sample to signed 16-bit, clipping out of range values
func SampleToInt16(sample float32) int16 {
	scaled := float64(sample) * 32767
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// PutFloat32LE writes samples as little-endian IEEE-754 values into dst.
// dst must hold at least 4*len(samples) bytes.
func PutFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

// PutInt16LE writes samples as clipped little-endian 16-bit values into dst.
// dst must hold at least 2*len(samples) bytes.
func PutInt16LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(SampleToInt16(s)))
	}
}
