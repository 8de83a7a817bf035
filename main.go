// ABOUTME: Entry point for the pcmbridge tone player
// ABOUTME: Parses CLI flags over the config file and runs the bridge with an optional TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/pcmbridge/internal/app"
	"github.com/Resonate-Protocol/pcmbridge/internal/config"
	"github.com/Resonate-Protocol/pcmbridge/internal/ui"
	"github.com/Resonate-Protocol/pcmbridge/internal/version"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
)

var (
	configFile  = flag.String("config", "", "Config file (yaml, toml or json)")
	backendName = flag.String("output", "oto", "Output backend (see -list-outputs)")
	listOutputs = flag.Bool("list-outputs", false, "List output backends and exit")
	sampleRate  = flag.Int("rate", 44100, "Desired sample rate")
	channels    = flag.Int("channels", 1, "Desired channel count")
	blockSize   = flag.Int("block", 4410, "Frames per output callback")
	capacityMs  = flag.Int("capacity-ms", 500, "Sample queue size in milliseconds")
	overflow    = flag.String("overflow", "block", "Full queue policy: block or drop-oldest")
	volume      = flag.Int("volume", 100, "Initial volume (0-100)")
	wavPath     = flag.String("wav", "pcmbridge.wav", "File for the wav output")
	streamAddr  = flag.String("stream-addr", ":8928", "Listen address for the stream output")
	advertise   = flag.Bool("advertise", false, "Advertise the stream output via mDNS")
	name        = flag.String("name", "", "mDNS service name (default: hostname-pcmbridge)")
	waveform    = flag.String("waveform", "square", "Tone waveform: square, pulse, triangle, sine, noise")
	frequency   = flag.Float64("freq", 440, "Tone frequency in Hz")
	duty        = flag.Float64("duty", 0.5, "Square wave duty cycle")
	encoding    = flag.String("encoding", "u8", "Staging encoding: u8, s16le, f32le")
	logFile     = flag.String("log-file", "pcmbridge.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}
	if *listOutputs {
		for _, n := range output.Names() {
			fmt.Println(n)
		}
		return
	}

	// Determine if we should use TUI or streaming logs
	useTUI := !(*noTUI || *streamLogs)

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(&settings)
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	if settings.ServiceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		settings.ServiceName = fmt.Sprintf("%s-pcmbridge", hostname)
	}

	backend, err := output.New(settings.Backend, settings.OutputOptions())
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	bridgeConfig, err := app.FromSettings(settings)
	if err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	if !useTUI {
		log.Printf("Starting %s %s on %s output", version.Product, version.Version, backend.Name())
		log.Printf("TUI disabled - logging to file for debugging")
	}

	// TUI setup
	var tuiProg *tea.Program
	if useTUI {
		controls := ui.NewControls()
		tuiProg, err = ui.Run(controls, settings.Volume)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		bridgeConfig.Controls = controls
		bridgeConfig.Status = func(msg ui.StatusMsg) {
			tuiProg.Send(msg)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	bridge := app.New(bridgeConfig, backend)
	runErr := bridge.Run(ctx)

	if tuiProg != nil {
		tuiProg.Quit()
		tuiProg.Wait()
	}

	if runErr != nil {
		log.Fatalf("Bridge failed: %v", runErr)
	}
	log.Printf("Bridge stopped")
}

// applyFlags copies explicitly set flags over the loaded settings
func applyFlags(s *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "output":
			s.Backend = *backendName
		case "rate":
			s.Format.SampleRate = *sampleRate
		case "channels":
			s.Format.Channels = *channels
		case "block":
			s.Format.BlockSize = *blockSize
		case "capacity-ms":
			s.CapacityMs = *capacityMs
		case "overflow":
			s.Overflow = *overflow
		case "volume":
			s.Volume = *volume
		case "wav":
			s.WavPath = *wavPath
		case "stream-addr":
			s.StreamAddr = *streamAddr
		case "advertise":
			s.Advertise = *advertise
		case "name":
			s.ServiceName = *name
		case "waveform":
			s.Tone.Waveform = *waveform
		case "freq":
			s.Tone.Frequency = *frequency
		case "duty":
			s.Tone.Duty = *duty
		case "encoding":
			s.Tone.Encoding = *encoding
		}
	})
}
