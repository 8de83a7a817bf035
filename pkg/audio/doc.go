// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Format type and sample conversion functions
// Package audio provides the fundamental types shared by every pcmbridge package.
//
// This package defines:
//   - Format: the negotiated output format (sample rate, channels, block size)
//   - Conversions between float samples and 8-bit, 16-bit and float32 PCM
//
// Samples are float32 amplitudes in [-1, 1], one value per channel per frame,
// interleaved in delivery order.
//
// Example:
//
//	format := audio.DefaultFormat() // 44100Hz, mono, 4410 frames per block
//	block := make([]float32, format.BlockSamples())
//	period := format.BlockDuration() // 100ms
package audio
