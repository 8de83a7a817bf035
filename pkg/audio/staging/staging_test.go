// ABOUTME: Tests for the byte staging buffer
// ABOUTME: Covers each encoding, whole-block flushing, partial samples and overflow
package staging

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	pushes  [][]float32
	samples []float32
	err     error
}

func (c *collector) Push(samples []float32) error {
	if c.err != nil {
		return c.err
	}
	c.pushes = append(c.pushes, append([]float32(nil), samples...))
	c.samples = append(c.samples, samples...)
	return nil
}

func TestDecode(t *testing.T) {
	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(0.75))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-0.25))

	s16 := make([]byte, 6)
	binary.LittleEndian.PutUint16(s16, uint16(16384))
	binary.LittleEndian.PutUint16(s16[2:], 0)
	binary.LittleEndian.PutUint16(s16[4:], 0x8000) // -32768

	tests := []struct {
		name string
		enc  Encoding
		src  []byte
		want []float32
	}{
		{"u8", EncodingU8, []byte{128, 0, 192, 64}, []float32{0, -1, 0.5, -0.5}},
		{"s16le", EncodingS16LE, s16, []float32{0.5, 0, -1}},
		{"f32le", EncodingF32LE, f32, []float32{0.75, -0.25}},
		{"s16le partial", EncodingS16LE, []byte{0, 0x40, 7}, []float32{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]float32, len(tt.src))
			n := Decode(dst, tt.src, tt.enc)
			assert.Equal(t, tt.want, dst[:n])
		})
	}
}

func TestWritePushesWholeBlocks(t *testing.T) {
	c := &collector{}
	s := New(c, Config{Encoding: EncodingU8, BlockSamples: 4, Size: 16})

	n, err := s.Write([]byte{128, 128, 128})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, c.pushes, "no whole block yet")

	_, err = s.Write([]byte{192, 64, 0, 128, 128})
	require.NoError(t, err)

	require.Len(t, c.pushes, 2)
	assert.Equal(t, []float32{0, 0, 0, 0.5}, c.pushes[0])
	assert.Equal(t, []float32{-0.5, -1, 0, 0}, c.pushes[1])
	assert.Equal(t, 0, s.Len())
}

func TestWriteLargerThanRing(t *testing.T) {
	c := &collector{}
	s := New(c, Config{Encoding: EncodingU8, BlockSamples: 4, Size: 8})

	in := make([]byte, 30)
	for i := range in {
		in[i] = 128
	}

	n, err := s.Write(in)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Len(t, c.samples, 28)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Flush())
	assert.Len(t, c.samples, 30)
}

func TestFlushKeepsPartialSample(t *testing.T) {
	c := &collector{}
	s := New(c, Config{Encoding: EncodingS16LE, BlockSamples: 100, Size: 64})

	_, err := s.Write([]byte{0, 0x40, 0, 0, 0x11})
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	assert.Equal(t, []float32{0.5, 0}, c.samples)
	assert.Equal(t, 1, s.Len())

	// The stray byte completes with the next write
	_, err = s.Write([]byte{0x00})
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	assert.InDelta(t, float32(0x11)/32768, c.samples[2], 1e-9)
}

func TestStageOverflow(t *testing.T) {
	c := &collector{}
	s := New(c, Config{Encoding: EncodingU8, BlockSamples: 4, Size: 4})

	n, err := s.Stage([]byte{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, ErrStagingFull)
	assert.Equal(t, 4, n)
	assert.Empty(t, c.pushes, "Stage never pushes")
}

func TestWritePropagatesPushError(t *testing.T) {
	closed := errors.New("closed")
	c := &collector{err: closed}
	s := New(c, Config{Encoding: EncodingU8, BlockSamples: 2, Size: 8})

	_, err := s.Write([]byte{1, 2, 3})
	assert.ErrorIs(t, err, closed)
}

func TestDefaults(t *testing.T) {
	s := New(&collector{}, Config{Encoding: EncodingS16LE})
	assert.Equal(t, 8820, s.ring.Capacity())
	assert.Equal(t, 8820, s.flushBytes)
	assert.Equal(t, EncodingS16LE, s.Encoding())
}

func TestReset(t *testing.T) {
	s := New(&collector{}, Config{Encoding: EncodingU8, BlockSamples: 8, Size: 16})
	_, err := s.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"u8", EncodingU8, false},
		{"s16le", EncodingS16LE, false},
		{"", EncodingS16LE, false},
		{"f32", EncodingF32LE, false},
		{"mulaw", EncodingU8, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
