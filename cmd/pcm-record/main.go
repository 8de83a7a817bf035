// ABOUTME: Entry point for headless tone recording
// ABOUTME: Renders the producer into a WAV file as fast as it can be generated
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/pcmbridge/internal/app"
	"github.com/Resonate-Protocol/pcmbridge/internal/config"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
)

var (
	configFile = flag.String("config", "", "Config file (yaml, toml or json)")
	outPath    = flag.String("out", "tone.wav", "Output WAV file")
	duration   = flag.Duration("duration", 5*time.Second, "Length of the recording")
	waveform   = flag.String("waveform", "", "Override the configured waveform")
	frequency  = flag.Float64("freq", 0, "Override the configured frequency in Hz")
)

func main() {
	flag.Parse()

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *waveform != "" {
		settings.Tone.Waveform = *waveform
	}
	if *frequency > 0 {
		settings.Tone.Frequency = *frequency
	}

	bridgeConfig, err := app.FromSettings(settings)
	if err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	blockDuration := settings.Format.BlockDuration()
	bridgeConfig.Blocks = int((*duration + blockDuration - 1) / blockDuration)

	backend := output.NewWav(*outPath, false)
	bridge := app.New(bridgeConfig, backend)

	start := time.Now()
	if err := bridge.Run(context.Background()); err != nil {
		log.Fatalf("Recording failed: %v", err)
	}

	fmt.Printf("Wrote %d blocks (%v of audio) to %s in %v\n",
		backend.Blocks(),
		time.Duration(backend.Blocks())*blockDuration,
		*outPath,
		time.Since(start).Round(time.Millisecond))
}
