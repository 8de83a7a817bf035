// ABOUTME: Backend construction by name
// ABOUTME: Maps config and flag values to output implementations
package output

import (
	"fmt"
	"sort"
)

// Options carries the settings only some backends use
type Options struct {
	WavPath    string // wav: file to record to
	Realtime   bool   // wav: pull on the block clock instead of on demand
	StreamAddr string // stream: listen address
	AlsaCard   uint   // alsa: card number
	AlsaDevice uint   // alsa: device number
}

var constructors = map[string]func(Options) (Backend, error){
	"null":      func(Options) (Backend, error) { return NewNull(), nil },
	"oto":       func(Options) (Backend, error) { return NewOto(), nil },
	"malgo":     func(Options) (Backend, error) { return NewMalgo(), nil },
	"pulse":     func(Options) (Backend, error) { return NewPulse(), nil },
	"portaudio": func(Options) (Backend, error) { return NewPortAudio(), nil },
	"sdl":       func(Options) (Backend, error) { return NewSDL(), nil },
	"alsa": func(o Options) (Backend, error) {
		return NewALSA(o.AlsaCard, o.AlsaDevice), nil
	},
	"wav": func(o Options) (Backend, error) {
		if o.WavPath == "" {
			return nil, fmt.Errorf("wav output needs a file path")
		}
		return NewWav(o.WavPath, o.Realtime), nil
	},
	"stream": func(o Options) (Backend, error) {
		if o.StreamAddr == "" {
			return nil, fmt.Errorf("stream output needs a listen address")
		}
		return NewStream(o.StreamAddr), nil
	},
}

// New builds the backend registered under name
func New(name string, opts Options) (Backend, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown output %q (available: %v)", name, Names())
	}
	return ctor(opts)
}

// Names lists the registered backends in sorted order
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
