package audio

import "sync"

// Mixer sums every active voice into the device buffer. The zero value is
// ready to use.
type Mixer struct {
	mu     sync.Mutex
	voices []*voice
}

type voice struct {
	m       *Mixer
	samples []float32
	pos     int
	onEnded func()
	done    bool
}

// Add puts buf into the mix. onEnded runs on its own goroutine after the
// last sample has been rendered.
func (m *Mixer) Add(buf *Buffer, onEnded func()) Voice {
	return m.add(buf, onEnded)
}

// Render fills out with the next samples of the mix. It is meant to be
// called from the device callback.
func (m *Mixer) Render(out []float32) {
	notifyEnded(m.fill(out))
}

func (m *Mixer) add(buf *Buffer, onEnded func()) *voice {
	v := &voice{m: m, samples: buf.Samples, onEnded: onEnded}
	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	return v
}

// fill renders the next len(out) samples and returns the voices that ran
// out of samples during this call.
func (m *Mixer) fill(out []float32) []*voice {
	for i := range out {
		out[i] = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var finished []*voice
	active := m.voices[:0]
	for _, v := range m.voices {
		n := copyAdd(out, v.samples[v.pos:])
		v.pos += n
		if v.pos >= len(v.samples) {
			v.done = true
			finished = append(finished, v)
			continue
		}
		active = append(active, v)
	}
	for i := len(active); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = active

	for i, s := range out {
		switch {
		case s > 1:
			out[i] = 1
		case s < -1:
			out[i] = -1
		}
	}
	return finished
}

func copyAdd(dst, src []float32) int {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
	return n
}

func (m *Mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Stop removes the voice from the mix.
func (v *voice) Stop() error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.done {
		return ErrVoiceFinished
	}
	v.done = true
	for i, other := range m.voices {
		if other == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			break
		}
	}
	return nil
}

func notifyEnded(finished []*voice) {
	for _, v := range finished {
		if v.onEnded != nil {
			go v.onEnded()
		}
	}
}
