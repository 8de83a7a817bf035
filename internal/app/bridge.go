// ABOUTME: Main application orchestration
// ABOUTME: Opens the device, runs the tone producer and wires stats, controls and discovery
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/pcmbridge/internal/config"
	"github.com/Resonate-Protocol/pcmbridge/internal/discovery"
	"github.com/Resonate-Protocol/pcmbridge/internal/tone"
	"github.com/Resonate-Protocol/pcmbridge/internal/ui"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/staging"
	"github.com/Resonate-Protocol/pcmbridge/pkg/device"
)

// logInterval is how often stats are logged when nothing consumes StatusMsg
const logInterval = 10 * time.Second

// Config holds bridge configuration
type Config struct {
	Device        device.Config
	Tone          tone.Config // SampleRate and Channels come from the granted format
	Advertise     bool
	ServiceName   string
	StatsInterval time.Duration
	Blocks        int // stop after producing this many blocks; 0 runs until cancelled

	Controls *ui.Controls       // optional key actions from the TUI
	Status   func(ui.StatusMsg) // optional status sink, e.g. tea.Program.Send
}

// FromSettings converts loaded settings into a bridge config
func FromSettings(s config.Config) (Config, error) {
	dev, err := s.DeviceConfig()
	if err != nil {
		return Config{}, err
	}

	waveform, err := tone.ParseWaveform(s.Tone.Waveform)
	if err != nil {
		return Config{}, err
	}
	enc, err := staging.ParseEncoding(s.Tone.Encoding)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Device: dev,
		Tone: tone.Config{
			Waveform:  waveform,
			Frequency: s.Tone.Frequency,
			Duty:      s.Tone.Duty,
			Amplitude: s.Tone.Amplitude,
			Encoding:  enc,
		},
		Advertise:     s.Advertise,
		ServiceName:   s.ServiceName,
		StatsInterval: s.StatsInterval,
	}, nil
}

// offlineOutput is a backend that only pulls when told to
type offlineOutput interface {
	Clocked() bool
	Render(blocks int) error
}

// Bridge plays a generated signal through one output device
type Bridge struct {
	config    Config
	backend   output.Backend
	lifecycle *device.Lifecycle
	paused    atomic.Bool
	produced  atomic.Int64
}

// New creates a bridge for backend
func New(config Config, backend output.Backend) *Bridge {
	if config.StatsInterval <= 0 {
		config.StatsInterval = 500 * time.Millisecond
	}
	return &Bridge{
		config:    config,
		backend:   backend,
		lifecycle: device.New(backend, config.Device),
	}
}

// Pause stops or resumes the producer. Queued samples still play out.
func (b *Bridge) Pause(paused bool) {
	b.paused.Store(paused)
}

// Paused reports whether the producer is paused
func (b *Bridge) Paused() bool {
	return b.paused.Load()
}

// Produced returns how many blocks the producer has written
func (b *Bridge) Produced() int {
	return int(b.produced.Load())
}

// Run opens the device and plays until ctx is cancelled, the TUI quits or
// the configured number of blocks has been produced.
func (b *Bridge) Run(ctx context.Context) error {
	handle, err := b.lifecycle.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s output: %w", b.backend.Name(), err)
	}
	defer handle.Close()

	format := handle.Format()
	tc := b.config.Tone
	tc.SampleRate = format.SampleRate
	tc.Channels = format.Channels

	gen, err := tone.New(tc)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	if b.config.Advertise {
		mgr, err := b.advertise(handle)
		if err != nil {
			log.Printf("Warning: mDNS advertisement failed: %v", err)
		} else {
			defer mgr.Stop()
		}
	}

	producer := fmt.Sprintf("%s %.0fHz %s", tc.Waveform, tc.Frequency, tc.Encoding)
	log.Printf("Producing %s on %s (%v)", producer, b.backend.Name(), format)

	open := true
	stats := handle.Stats()
	b.sendStatus(ui.StatusMsg{
		Open:       &open,
		Backend:    b.backend.Name(),
		HandleID:   handle.ID().String(),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BlockSize:  format.BlockSize,
		Producer:   producer,
		Volume:     &stats.Volume,
		Muted:      &stats.Muted,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return b.produce(gctx, handle, gen)
	})

	g.Go(func() error {
		b.statsLoop(gctx, handle)
		return nil
	})

	if b.config.Controls != nil {
		g.Go(func() error {
			b.controlLoop(gctx, handle, cancel)
			return nil
		})
	}

	err = g.Wait()

	handle.Close()
	closed := false
	b.sendStatus(ui.StatusMsg{Open: &closed})

	return err
}

// contextPusher bounds every push by the producer's context
type contextPusher struct {
	ctx    context.Context
	handle *device.Handle
}

func (p contextPusher) Push(samples []float32) error {
	return p.handle.PushContext(p.ctx, samples)
}

// produce renders one block at a time and pushes it through a stager
func (b *Bridge) produce(ctx context.Context, handle *device.Handle, gen *tone.Generator) error {
	format := handle.Format()
	watermark := 2 * format.BlockSamples()
	buf := make([]byte, format.BlockSize*gen.FrameBytes())

	enc := gen.Config().Encoding
	stager := staging.New(contextPusher{ctx: ctx, handle: handle}, staging.Config{
		Encoding:     enc,
		BlockSamples: format.BlockSamples(),
		Size:         2 * format.BlockSamples() * enc.Width(),
	})

	offline, ok := b.backend.(offlineOutput)
	if ok && offline.Clocked() {
		offline = nil
	}

	for b.config.Blocks == 0 || b.Produced() < b.config.Blocks {
		if b.paused.Load() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(format.BlockDuration()):
			}
			continue
		}

		if offline == nil {
			if err := handle.WaitBelow(ctx, watermark); err != nil {
				return ignoreShutdown(err)
			}
		}

		n := gen.Render(buf)
		if _, err := stager.Write(buf[:n]); err != nil {
			return ignoreShutdown(err)
		}

		if offline != nil {
			if err := offline.Render(1); err != nil {
				return fmt.Errorf("failed to render block: %w", err)
			}
		}
		b.produced.Add(1)
	}

	if err := stager.Flush(); err != nil {
		return ignoreShutdown(err)
	}
	log.Printf("Producer finished after %d blocks", b.Produced())
	return nil
}

// runtimeStatsEvery is how many stats ticks pass between runtime.ReadMemStats
// calls, which stop the world
const runtimeStatsEvery = 4

// statsLoop reports device statistics until ctx is done
func (b *Bridge) statsLoop(ctx context.Context, handle *device.Handle) {
	interval := b.config.StatsInterval
	if b.config.Status == nil {
		interval = logInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var rt runtimeStats
	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := handle.Stats()
			if b.config.Status == nil {
				log.Printf("Stats: %s, queued %d/%d, %d pulls, %d underruns, %d dropped",
					s.State, s.Queued, s.Capacity, s.Pulls, s.Underruns, s.Dropped)
				continue
			}
			if tick%runtimeStatsEvery == 0 {
				rt = readRuntimeStats()
			}
			b.sendStatus(b.statusFrom(s, rt))
		}
	}
}

type runtimeStats struct {
	goroutines int
	heapMB     float64
}

func readRuntimeStats() runtimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return runtimeStats{
		goroutines: runtime.NumGoroutine(),
		heapMB:     float64(mem.HeapAlloc) / (1024 * 1024),
	}
}

func (b *Bridge) statusFrom(s device.Stats, rt runtimeStats) ui.StatusMsg {
	paused := b.paused.Load()
	msg := ui.StatusMsg{
		State:      s.State.String(),
		Paused:     &paused,
		Volume:     &s.Volume,
		Muted:      &s.Muted,
		Queued:     s.Queued,
		Capacity:   s.Capacity,
		Pushed:     s.Pushed,
		Dropped:    s.Dropped,
		Pulls:      s.Pulls,
		Underruns:  s.Underruns,
		Silent:     s.Silent,
		Goroutines: rt.goroutines,
		HeapMB:     rt.heapMB,
	}
	if stream, ok := b.backend.(*output.Stream); ok {
		msg.Listeners = stream.Listeners()
	}
	return msg
}

// controlLoop applies key actions from the TUI
func (b *Bridge) controlLoop(ctx context.Context, handle *device.Handle, quit context.CancelFunc) {
	controls := b.config.Controls

	for {
		select {
		case <-ctx.Done():
			return
		case change := <-controls.Changes:
			if err := handle.SetVolume(change.Volume); err != nil {
				return
			}
			if err := handle.SetMuted(change.Muted); err != nil {
				return
			}
			log.Printf("Volume changed: %d (muted: %v)", change.Volume, change.Muted)
		case msg := <-controls.Pause:
			b.Pause(msg.Paused)
			log.Printf("Producer paused: %v", msg.Paused)
		case <-controls.Quit:
			log.Printf("Quit requested")
			quit()
			return
		}
	}
}

// advertise announces a stream backend over mDNS
func (b *Bridge) advertise(handle *device.Handle) (*discovery.Manager, error) {
	stream, ok := b.backend.(*output.Stream)
	if !ok {
		return nil, fmt.Errorf("%s output cannot be advertised", b.backend.Name())
	}

	_, portStr, err := net.SplitHostPort(stream.Addr())
	if err != nil {
		return nil, fmt.Errorf("invalid stream address %s: %w", stream.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stream port %s: %w", portStr, err)
	}

	name := b.config.ServiceName
	if name == "" {
		name = "pcmbridge-" + stream.ServerID()[:8]
	}

	format := handle.Format()
	mgr := discovery.NewManager(discovery.Config{
		ServiceName: name,
		Port:        port,
		Path:        output.StreamPath,
		Info: []string{
			"rate=" + strconv.Itoa(format.SampleRate),
			"channels=" + strconv.Itoa(format.Channels),
			"block=" + strconv.Itoa(format.BlockSize),
		},
	})
	if err := mgr.Advertise(); err != nil {
		mgr.Stop()
		return nil, err
	}
	return mgr, nil
}

func (b *Bridge) sendStatus(msg ui.StatusMsg) {
	if b.config.Status != nil {
		b.config.Status(msg)
	}
}

// ignoreShutdown treats cancellation and a closed device as a clean stop
func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, device.ErrDeviceClosed) {
		return nil
	}
	return err
}
