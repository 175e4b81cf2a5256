// Package portaudio plays audio.Buffer values through the default output
// device. It is the only package that links the PortAudio C library.
package portaudio

import (
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/tiroq/athar/internal/audio"
)

// Output plays through the default output device. The stream is opened once
// and stays open for the life of the process; it starts suspended and is
// resumed by the first playback.
type Output struct {
	mu      sync.Mutex
	stream  *pa.Stream
	running bool
	mix     audio.Mixer
}

// NewOutput initializes PortAudio and opens a mono 24 kHz stream.
func NewOutput() (*Output, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	o := &Output{}
	stream, err := pa.OpenDefaultStream(
		0,                     // input channels
		audio.Channels,        // output channels
		audio.SampleRate,      // sample rate
		audio.FramesPerBuffer, // frames per buffer
		o.mix.Render,
	)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	o.stream = stream
	return o, nil
}

var _ audio.Output = (*Output)(nil)

// Suspended reports whether the stream is stopped.
func (o *Output) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.running
}

// Resume starts the stream if it is stopped.
func (o *Output) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	o.running = true
	return nil
}

// Play adds buf to the mix.
func (o *Output) Play(buf *audio.Buffer, onEnded func()) (audio.Voice, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, fmt.Errorf("play: empty buffer")
	}
	if buf.SampleRate != audio.SampleRate {
		return nil, fmt.Errorf("play: sample rate %d, device runs at %d", buf.SampleRate, audio.SampleRate)
	}
	return o.mix.Add(buf, onEnded), nil
}
