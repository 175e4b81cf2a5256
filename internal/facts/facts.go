// Package facts rotates short archaeological facts while an analysis runs.
package facts

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tiroq/athar/internal/i18n"
)

// DefaultInterval between rotations.
const DefaultInterval = 4 * time.Second

// Source picks a uniform integer in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// For returns the facts for lang, falling back to the default language.
func For(lang i18n.Language) []string {
	list, ok := table[lang]
	if !ok {
		list = table[i18n.Default]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// NextIndex draws a uniformly random index in [0, n) that differs from prev
// whenever n > 1.
func NextIndex(prev, n int, rng Source) int {
	if n <= 1 {
		return 0
	}
	for {
		next := rng.IntN(n)
		if next != prev {
			return next
		}
	}
}

// Change is delivered on every rotation.
type Change struct {
	Lang  i18n.Language
	Index int
	Fact  string
}

// Rotator changes the current fact every interval while started.
//
// The callback runs on the rotator's goroutine and must not call Start or
// Stop.
type Rotator struct {
	interval time.Duration
	rng      Source
	onChange func(Change)

	mu    sync.Mutex
	index int
	lang  i18n.Language
	stop  chan struct{}
	done  chan struct{}
}

// NewRotator creates a stopped rotator. A zero interval means DefaultInterval.
func NewRotator(interval time.Duration, onChange func(Change)) *Rotator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Rotator{interval: interval, rng: globalSource{}, onChange: onChange, lang: i18n.Default}
}

// SetSource replaces the random source. Call before Start.
func (r *Rotator) SetSource(rng Source) {
	r.mu.Lock()
	r.rng = rng
	r.mu.Unlock()
}

// Start begins rotating facts for lang, restarting the timer if it is
// already running. The current index carries over.
func (r *Rotator) Start(lang i18n.Language) {
	r.Stop()

	stop := make(chan struct{})
	done := make(chan struct{})

	r.mu.Lock()
	r.lang = lang
	r.stop, r.done = stop, done
	r.mu.Unlock()

	go r.run(lang, For(lang), stop, done)
}

// Stop halts rotation and waits for the timer goroutine to exit. No callback
// fires after Stop returns.
func (r *Rotator) Stop() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the timer is active.
func (r *Rotator) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Current returns the fact currently shown.
func (r *Rotator) Current() Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := table[r.lang]
	if len(list) == 0 {
		list = table[i18n.Default]
	}
	idx := r.index % len(list)
	return Change{Lang: r.lang, Index: idx, Fact: list[idx]}
}

func (r *Rotator) run(lang i18n.Language, list []string, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// Stop may have raced with the tick.
		select {
		case <-stop:
			return
		default:
		}

		r.mu.Lock()
		r.index = NextIndex(r.index, len(list), r.rng)
		c := Change{Lang: lang, Index: r.index, Fact: list[r.index]}
		r.mu.Unlock()

		if r.onChange != nil {
			r.onChange(c)
		}
	}
}
