// ABOUTME: Tests for the sample queue
// ABOUTME: Covers FIFO order, partial drains, wraparound and overflow policies
package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) / 10
	}
	return out
}

func TestDrainShorterThanRequest(t *testing.T) {
	q := New(16, OverflowBlock)
	q.Append([]float32{0.1, 0.2, 0.3})

	got := q.Drain(5)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
	assert.Equal(t, 0, q.Len())
}

func TestDrainLeavesExcessInOrder(t *testing.T) {
	q := New(16, OverflowBlock)
	in := seq(9)
	q.Append(in)

	got := q.Drain(4)

	assert.Equal(t, in[:4], got)
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, in[4:], q.Drain(100))
}

func TestDrainNonPositive(t *testing.T) {
	q := New(4, OverflowBlock)
	q.Append([]float32{1})

	assert.Nil(t, q.Drain(0))
	assert.Nil(t, q.Drain(-3))
	assert.Equal(t, 1, q.Len())
}

func TestFIFOConservationAcrossWraparound(t *testing.T) {
	q := New(7, OverflowBlock)
	in := seq(40)

	var out []float32
	pending := in
	for len(pending) > 0 || q.Len() > 0 {
		n, dropped := q.Append(pending)
		require.Zero(t, dropped)
		pending = pending[n:]
		out = append(out, q.Drain(3)...)
	}

	assert.Equal(t, in, out)
}

func TestBlockPolicyAppendsOnlyWhatFits(t *testing.T) {
	q := New(4, OverflowBlock)

	n, dropped := q.Append(seq(6))

	assert.Equal(t, 4, n)
	assert.Zero(t, dropped)
	assert.Equal(t, 0, q.Free())

	n, _ = q.Append([]float32{9})
	assert.Zero(t, n, "full queue must not accept more samples")
	assert.Equal(t, seq(4), q.Drain(4))
}

func TestDropOldestKeepsNewest(t *testing.T) {
	q := New(4, OverflowDropOldest)
	q.Append([]float32{1, 2, 3})

	n, dropped := q.Append([]float32{4, 5, 6})

	assert.Equal(t, 3, n)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []float32{3, 4, 5, 6}, q.Drain(10))
}

func TestDropOldestOversizedAppend(t *testing.T) {
	q := New(3, OverflowDropOldest)
	q.Append([]float32{1})

	n, dropped := q.Append([]float32{2, 3, 4, 5, 6})

	assert.Equal(t, 3, n)
	assert.Equal(t, 3, dropped) // 2 incoming + 1 queued
	assert.Equal(t, []float32{4, 5, 6}, q.Drain(10))
}

func TestDrainIntoDoesNotTouchTail(t *testing.T) {
	q := New(8, OverflowBlock)
	q.Append([]float32{1, 2})

	dst := []float32{-1, -1, -1, -1}
	n := q.DrainInto(dst)

	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{1, 2, -1, -1}, dst)
}

func TestReset(t *testing.T) {
	q := New(4, OverflowBlock)
	q.Append(seq(3))
	q.Reset()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 4, q.Free())
}

func TestNewClampsCapacity(t *testing.T) {
	q := New(0, OverflowBlock)
	assert.Equal(t, 1, q.Cap())
}

func TestParseOverflow(t *testing.T) {
	tests := []struct {
		in      string
		want    Overflow
		wantErr bool
	}{
		{"", OverflowBlock, false},
		{"block", OverflowBlock, false},
		{"drop-oldest", OverflowDropOldest, false},
		{"drop", OverflowDropOldest, false},
		{"ring", OverflowBlock, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOverflow(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}
}
