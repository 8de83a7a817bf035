// ABOUTME: Entry point for the stream listener
// ABOUTME: Finds a PCM stream via mDNS or -url and plays it through a local output
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/pcmbridge/internal/client"
	"github.com/Resonate-Protocol/pcmbridge/internal/discovery"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/queue"
	"github.com/Resonate-Protocol/pcmbridge/pkg/device"
)

var (
	streamURL   = flag.String("url", "", "Stream URL (skip mDNS), e.g. ws://host:8928/pcm")
	backendName = flag.String("output", "oto", "Output backend")
	capacityMs  = flag.Int("capacity-ms", 300, "Sample queue size in milliseconds")
	volume      = flag.Int("volume", 100, "Initial volume (0-100)")
	wavPath     = flag.String("wav", "pcm-listen.wav", "File for the wav output")
	browseFor   = flag.Duration("browse-timeout", 10*time.Second, "How long to wait for mDNS discovery")
	logFile     = flag.String("log-file", "pcm-listen.log", "Log file path")
)

var errResampleUnsupported = errors.New("resampling is not supported")

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	multiWriter := io.MultiWriter(os.Stdout, f)
	log.SetOutput(multiWriter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Printf("pcm-listen: %v", err)
		f.Close()
		os.Exit(1)
	}
}

// run connects, opens the output and plays until the stream or ctx ends.
// The connection and handle are closed on every return path.
func run(ctx context.Context) error {
	url := *streamURL
	if url == "" {
		var err error
		url, err = discover(ctx, *browseFor)
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
	}

	conn := client.NewClient(client.Config{URL: url})
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	backend, err := output.New(*backendName, output.Options{WavPath: *wavPath, Realtime: true})
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	// A live stream must never stall the reader, so a full queue drops the oldest audio
	lifecycle := device.New(backend, device.Config{
		Format:     conn.Format(),
		CapacityMs: *capacityMs,
		Overflow:   queue.OverflowDropOldest,
		Volume:     *volume,
	})

	handle, err := lifecycle.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s output: %w", backend.Name(), err)
	}
	defer handle.Close()

	if err := checkStreamFormat(conn.Format(), handle.Format()); err != nil {
		return err
	}

	log.Printf("Playing %s on %s", url, backend.Name())
	if err := play(ctx, conn, handle); err != nil {
		log.Printf("Playback error: %v", err)
	}

	stats := handle.Stats()
	log.Printf("Listener stopped: %d samples, %d dropped, %d underruns, %d blocks missed upstream",
		stats.Pushed, stats.Dropped, stats.Underruns, conn.Missed())
	return nil
}

// checkStreamFormat rejects an output that would need resampling or
// channel remapping to play the stream. Block size may differ.
func checkStreamFormat(stream, granted audio.Format) error {
	if stream.SampleRate != granted.SampleRate || stream.Channels != granted.Channels {
		return fmt.Errorf("output granted %v for a %v stream: %w", granted, stream, errResampleUnsupported)
	}
	return nil
}

// discover browses mDNS and returns the URL of the first stream found
func discover(ctx context.Context, timeout time.Duration) (string, error) {
	log.Printf("Starting stream discovery...")

	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return "", err
	}

	select {
	case stream := <-mgr.Streams():
		log.Printf("Discovered stream %s", stream.Name)
		return stream.URL(), nil
	case <-time.After(timeout):
		return "", errors.New("no stream found")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// play pushes received blocks until the stream or ctx ends
func play(ctx context.Context, conn *client.Client, handle *device.Handle) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-conn.Blocks:
			if !ok {
				log.Printf("Stream ended")
				return nil
			}
			if err := handle.PushContext(ctx, block.Samples); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}
