// ABOUTME: Tests for the device-independent backends
// ABOUTME: Exercises null, manual, wav, stream and the registry without sound hardware
package output

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

var testFormat = audio.Format{SampleRate: 1000, Channels: 1, BlockSize: 10}

func constant(v float32) Callback {
	return func(out []float32) {
		for i := range out {
			out[i] = v
		}
	}
}

func TestBackendsImplementInterface(t *testing.T) {
	var _ Backend = (*Null)(nil)
	var _ Backend = (*Manual)(nil)
	var _ Backend = (*Oto)(nil)
	var _ Backend = (*Malgo)(nil)
	var _ Backend = (*Pulse)(nil)
	var _ Backend = (*PortAudio)(nil)
	var _ Backend = (*SDL)(nil)
	var _ Backend = (*ALSA)(nil)
	var _ Backend = (*Wav)(nil)
	var _ Backend = (*Stream)(nil)
}

func TestNullPullsOnClock(t *testing.T) {
	n := NewNull()
	granted, err := n.Negotiate(testFormat)
	require.NoError(t, err)
	assert.Equal(t, testFormat, granted)

	var pulls atomic.Int32
	var sizes atomic.Int32
	require.NoError(t, n.Start(func(out []float32) {
		pulls.Add(1)
		sizes.Store(int32(len(out)))
	}))

	require.Eventually(t, func() bool { return pulls.Load() >= 2 }, 2*time.Second, time.Millisecond)
	require.NoError(t, n.Stop())
	require.NoError(t, n.Stop())
	assert.Equal(t, int32(10), sizes.Load())

	after := pulls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, pulls.Load(), "no pulls after Stop")
}

func TestNullRejectsInvalidFormat(t *testing.T) {
	_, err := NewNull().Negotiate(audio.Format{SampleRate: 0, Channels: 1, BlockSize: 10})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNullStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewNull().Stop())
}

func TestManualPull(t *testing.T) {
	m := NewManual()
	_, err := m.Negotiate(testFormat)
	require.NoError(t, err)

	assert.Nil(t, m.Pull(), "no pulls before Start")

	require.NoError(t, m.Start(constant(0.5)))
	block := m.Pull()
	require.Len(t, block, 10)
	assert.Equal(t, float32(0.5), block[9])

	require.NoError(t, m.Stop())
	assert.Nil(t, m.Pull())
	assert.Equal(t, 1, m.Stops())
}

func TestManualGrantAndErrors(t *testing.T) {
	grant := audio.Format{SampleRate: 48000, Channels: 2, BlockSize: 480}
	m := &Manual{Grant: &grant}

	got, err := m.Negotiate(testFormat)
	require.NoError(t, err)
	assert.Equal(t, grant, got)

	m = &Manual{NegotiateErr: ErrNoPlaybackDevice}
	_, err = m.Negotiate(testFormat)
	assert.ErrorIs(t, err, ErrNoPlaybackDevice)
}

func TestWavOfflineRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w := NewWav(path, false)

	_, err := w.Negotiate(testFormat)
	require.NoError(t, err)
	require.NoError(t, w.Start(constant(0.5)))
	require.NoError(t, w.Render(3))
	assert.Equal(t, 3, w.Blocks())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	require.True(t, decoder.IsValidFile())
	assert.EqualValues(t, 1000, decoder.SampleRate)
	assert.EqualValues(t, 1, decoder.NumChans)
	assert.EqualValues(t, 16, decoder.BitDepth)

	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 30)
	assert.Equal(t, int(audio.SampleToInt16(0.5)), buf.Data[0])
	assert.Equal(t, int(audio.SampleToInt16(0.5)), buf.Data[29])
}

func TestWavRenderAfterStopFails(t *testing.T) {
	w := NewWav(filepath.Join(t.TempDir(), "out.wav"), false)
	_, err := w.Negotiate(testFormat)
	require.NoError(t, err)
	require.NoError(t, w.Start(constant(0)))
	require.NoError(t, w.Stop())

	assert.Error(t, w.Render(1))
}

func TestWavClockedRejectsRender(t *testing.T) {
	w := NewWav(filepath.Join(t.TempDir(), "out.wav"), true)
	assert.ErrorIs(t, w.Render(1), ErrNotOffline)
}

func TestWavBadPath(t *testing.T) {
	w := NewWav(filepath.Join(t.TempDir(), "missing", "out.wav"), false)
	_, err := w.Negotiate(testFormat)
	assert.ErrorIs(t, err, ErrNoPlaybackDevice)
}

func TestStreamBroadcast(t *testing.T) {
	s := NewStream("127.0.0.1:0")
	_, err := s.Negotiate(testFormat)
	require.NoError(t, err)
	require.NoError(t, s.Start(constant(0.25)))
	defer s.Stop()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+StreamPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)

	var hello StreamStart
	require.NoError(t, json.Unmarshal(data, &hello))
	assert.Equal(t, "stream/start", hello.Type)
	assert.Equal(t, 1000, hello.SampleRate)
	assert.Equal(t, 10, hello.BlockSize)
	assert.Equal(t, s.ServerID(), hello.ServerID)

	msgType, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.Len(t, data, StreamHeaderSize+10*4)
	assert.Equal(t, StreamAudioMessage, data[0])
	assert.NotZero(t, binary.BigEndian.Uint64(data[1:]))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(data[StreamHeaderSize:])))
}

func TestStreamStopDisconnectsListeners(t *testing.T) {
	s := NewStream("127.0.0.1:0")
	_, err := s.Negotiate(testFormat)
	require.NoError(t, err)
	require.NoError(t, s.Start(constant(0)))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+StreamPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Listeners() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, 0, s.Listeners())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("listener was not disconnected")
			}
			break
		}
	}
}

func TestEncodeStreamBlock(t *testing.T) {
	msg := EncodeStreamBlock(7, []float32{1, -1})

	require.Len(t, msg, StreamHeaderSize+8)
	assert.Equal(t, StreamAudioMessage, msg[0])
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(msg[1:]))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(msg[StreamHeaderSize+4:])))
}

func TestDecodeStreamBlock(t *testing.T) {
	seq, samples, err := DecodeStreamBlock(EncodeStreamBlock(42, []float32{0.25, -0.5, 1}), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)
	assert.Equal(t, []float32{0.25, -0.5, 1}, samples)

	// dst is reused when large enough
	dst := make([]float32, 8)
	_, got, err := DecodeStreamBlock(EncodeStreamBlock(1, []float32{0.5}), dst)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, got)
	assert.Same(t, &dst[0], &got[0])

	bad := [][]byte{
		{StreamAudioMessage, 0, 0},
		append([]byte{9}, make([]byte, 8)...),
		append([]byte{StreamAudioMessage}, make([]byte, 10)...),
	}
	for _, msg := range bad {
		_, _, err := DecodeStreamBlock(msg, nil)
		assert.Error(t, err)
	}
}

func TestRegistry(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"null", Options{}, false},
		{"oto", Options{}, false},
		{"malgo", Options{}, false},
		{"pulse", Options{}, false},
		{"portaudio", Options{}, false},
		{"sdl", Options{}, false},
		{"alsa", Options{}, false},
		{"wav", Options{WavPath: "out.wav"}, false},
		{"wav", Options{}, true},
		{"stream", Options{StreamAddr: ":8928"}, false},
		{"stream", Options{}, true},
		{"jack", Options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.name, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, b.Name())
		})
	}

	assert.Contains(t, Names(), "null")
}
