// Package audio decodes synthesized speech and plays it on the output device.
package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	// SampleRate of synthesized speech (24 kHz).
	SampleRate = 24000
	// Channels - mono.
	Channels = 1
	// FramesPerBuffer is the device callback size.
	FramesPerBuffer = 1024
)

// ErrVoiceFinished is returned when stopping a voice that already ended.
var ErrVoiceFinished = errors.New("audio: voice already finished")

// Buffer is decoded mono audio ready to play.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM16 converts signed 16-bit little-endian mono PCM at SampleRate to
// samples in [-1, 1]. A trailing odd byte is ignored.
func DecodePCM16(data []byte) *Buffer {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return &Buffer{Samples: samples, SampleRate: SampleRate}
}

// Voice is one buffer being played.
type Voice interface {
	// Stop halts the voice immediately. It returns ErrVoiceFinished when the
	// voice had already ended; the onEnded callback is not invoked by Stop.
	Stop() error
}

// Output is the process-wide audio output context.
type Output interface {
	// Suspended reports whether the device is idle and must be resumed
	// before anything is audible.
	Suspended() bool
	// Resume wakes a suspended device.
	Resume() error
	// Play starts buf immediately. onEnded runs on its own goroutine after
	// the last sample was rendered.
	Play(buf *Buffer, onEnded func()) (Voice, error)
}
