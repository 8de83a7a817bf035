// ABOUTME: Tests for the stream listener entry point
// ABOUTME: Covers the stream/output format compatibility check made before playback
package main

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/pcmbridge/pkg/audio"
)

func TestCheckStreamFormat(t *testing.T) {
	stream := audio.Format{SampleRate: 48000, Channels: 2, BlockSize: 480}

	tests := []struct {
		name    string
		granted audio.Format
		wantErr bool
	}{
		{"identical", stream, false},
		{"different block size", audio.Format{SampleRate: 48000, Channels: 2, BlockSize: 1024}, false},
		{"different rate", audio.Format{SampleRate: 44100, Channels: 2, BlockSize: 480}, true},
		{"different channels", audio.Format{SampleRate: 48000, Channels: 1, BlockSize: 480}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStreamFormat(stream, tt.granted)
			if tt.wantErr {
				if !errors.Is(err, errResampleUnsupported) {
					t.Errorf("checkStreamFormat() error = %v, want %v", err, errResampleUnsupported)
				}
				return
			}
			if err != nil {
				t.Errorf("checkStreamFormat() unexpected error: %v", err)
			}
		})
	}
}
