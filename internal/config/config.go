// ABOUTME: Configuration file loading
// ABOUTME: Reads defaults and an optional config file with viper into a typed Config
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmbridge/pkg/audio/queue"
	"github.com/Resonate-Protocol/pcmbridge/pkg/device"
)

// Tone describes the test signal the built-in producer plays
type Tone struct {
	Waveform  string  // square, pulse, triangle, sine or noise
	Frequency float64 // Hz
	Duty      float64 // high fraction of a square/pulse period
	Amplitude float64 // 0..1
	Encoding  string  // u8, s16le or f32le staging layout
}

// Config holds application configuration
type Config struct {
	Backend    string
	Format     audio.Format
	CapacityMs int
	Overflow   string
	Volume     int

	WavPath    string
	Realtime   bool
	StreamAddr string
	AlsaCard   uint
	AlsaDevice uint

	Advertise   bool
	ServiceName string

	StatsInterval time.Duration
	Tone          Tone
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("backend", "oto")
	v.SetDefault("sample_rate", audio.DefaultSampleRate)
	v.SetDefault("channels", audio.DefaultChannels)
	v.SetDefault("block_size", audio.DefaultBlockSize)
	v.SetDefault("capacity_ms", 500)
	v.SetDefault("overflow", "block")
	v.SetDefault("volume", 100)
	v.SetDefault("wav_path", "pcmbridge.wav")
	v.SetDefault("realtime", true)
	v.SetDefault("stream_addr", ":8928")
	v.SetDefault("alsa_card", 0)
	v.SetDefault("alsa_device", 0)
	v.SetDefault("advertise", false)
	v.SetDefault("service_name", "")
	v.SetDefault("stats_interval", 500*time.Millisecond)
	v.SetDefault("tone.waveform", "square")
	v.SetDefault("tone.frequency", 440.0)
	v.SetDefault("tone.duty", 0.5)
	v.SetDefault("tone.amplitude", 0.25)
	v.SetDefault("tone.encoding", "u8")
}

// Load reads the config file at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				log.Printf("No config file found at %s, using defaults", path)
			} else {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		Backend: v.GetString("backend"),
		Format: audio.Format{
			SampleRate: v.GetInt("sample_rate"),
			Channels:   v.GetInt("channels"),
			BlockSize:  v.GetInt("block_size"),
		},
		CapacityMs:    v.GetInt("capacity_ms"),
		Overflow:      v.GetString("overflow"),
		Volume:        v.GetInt("volume"),
		WavPath:       v.GetString("wav_path"),
		Realtime:      v.GetBool("realtime"),
		StreamAddr:    v.GetString("stream_addr"),
		AlsaCard:      v.GetUint("alsa_card"),
		AlsaDevice:    v.GetUint("alsa_device"),
		Advertise:     v.GetBool("advertise"),
		ServiceName:   v.GetString("service_name"),
		StatsInterval: v.GetDuration("stats_interval"),
		Tone: Tone{
			Waveform:  v.GetString("tone.waveform"),
			Frequency: v.GetFloat64("tone.frequency"),
			Duty:      v.GetFloat64("tone.duty"),
			Amplitude: v.GetFloat64("tone.amplitude"),
			Encoding:  v.GetString("tone.encoding"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at Open
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	if c.CapacityMs <= 0 {
		return fmt.Errorf("invalid capacity_ms: %d", c.CapacityMs)
	}
	if _, err := queue.ParseOverflow(c.Overflow); err != nil {
		return err
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("invalid volume: %d (0-100)", c.Volume)
	}
	return nil
}

// OutputOptions returns the backend-specific settings
func (c Config) OutputOptions() output.Options {
	return output.Options{
		WavPath:    c.WavPath,
		Realtime:   c.Realtime,
		StreamAddr: c.StreamAddr,
		AlsaCard:   c.AlsaCard,
		AlsaDevice: c.AlsaDevice,
	}
}

// DeviceConfig returns the device settings
func (c Config) DeviceConfig() (device.Config, error) {
	overflow, err := queue.ParseOverflow(c.Overflow)
	if err != nil {
		return device.Config{}, err
	}
	return device.Config{
		Format:     c.Format,
		CapacityMs: c.CapacityMs,
		Overflow:   overflow,
		Volume:     c.Volume,
		Muted:      c.Volume == 0,
	}, nil
}
