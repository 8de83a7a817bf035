// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Backend interface, the drain callback and the backend implementations
// Package output connects the sample queue to audio devices.
//
// A Backend negotiates a format with a device and then pulls fixed-size blocks
// on its own goroutine through a Callback. Drain is the callback: it moves
// queued samples into each block and pads with silence when the producer falls
// behind.
//
// Backends: null, manual, oto, malgo, pulse, alsa (Linux), wav, stream, plus
// portaudio and sdl behind the build tags of the same name.
//
// Example:
//
//	backend, err := output.New("oto", output.Options{})
//	granted, err := backend.Negotiate(audio.DefaultFormat())
//	drain := output.NewDrain(granted, g)
//	err = backend.Start(drain.Callback())
//	defer backend.Stop()
package output
