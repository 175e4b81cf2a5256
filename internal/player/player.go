// Package player speaks translations aloud, one utterance at a time.
//
// A Controller owns the process-wide audio output and at most one playback
// session. Every Play request supersedes whatever came before it: a playing
// session is halted before the new one can be heard, and a request that is
// still waiting for synthesis is cancelled and never plays.
//
// Each session reports OnEnd exactly once, whether it ran to completion, was
// preempted, was stopped, or failed. Failures are logged, never returned.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tiroq/athar/internal/audio"
	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/i18n"
)

// State is the controller's externally visible playback state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StatePlaying  State = "playing"
)

// Callbacks are invoked from the goroutine that drives the session. OnStart
// runs at most once and always before OnEnd; OnEnd runs exactly once.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
}

// OutputFactory creates the audio output. It is called until it succeeds
// once; the output is then kept for the life of the controller.
type OutputFactory func() (audio.Output, error)

// session is one request from Play to its end.
type session struct {
	id     uint64
	cancel context.CancelFunc
	voice  audio.Voice // nil until playback starts
	cb     Callbacks
	once   sync.Once

	mu         sync.Mutex
	starting   bool // OnStart is running
	endPending bool // end was requested while starting
}

// end runs OnEnd once. While OnStart is running the call is deferred to the
// goroutine running OnStart.
func (s *session) end() {
	s.mu.Lock()
	if s.starting {
		s.endPending = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.once.Do(func() {
		if s.cb.OnEnd != nil {
			s.cb.OnEnd()
		}
	})
}

// started marks OnStart as returned. It reports whether the session was
// ended meanwhile; OnEnd has then already run.
func (s *session) started() bool {
	s.mu.Lock()
	s.starting = false
	pending := s.endPending
	s.mu.Unlock()

	if pending {
		s.end()
	}
	return pending
}

// Controller is the audio playback controller. Construct it once and share it.
type Controller struct {
	synth     gateway.Synthesizer
	newOutput OutputFactory

	outMu sync.Mutex
	out   audio.Output

	mu      sync.Mutex
	gen     uint64   // id of the newest request
	current *session // newest request, pending or playing

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a controller. The output is not created until the first Play.
func New(synth gateway.Synthesizer, newOutput OutputFactory) *Controller {
	return &Controller{synth: synth, newOutput: newOutput}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Controller) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Controller) log(event string, id uint64, reason string) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	l.Log(diaglog.LogEntry{
		Component: diaglog.ComponentPlayer,
		Event:     event,
		SessionID: fmt.Sprint(id),
		Reason:    reason,
	})
}

// Play synthesizes text in lang and plays it, replacing any earlier session.
// It blocks until playback has started or the request has ended.
func (c *Controller) Play(ctx context.Context, text string, lang i18n.Language, cb Callbacks) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.gen++
	s := &session{id: c.gen, cancel: cancel, cb: cb}
	prev := c.detachLocked()
	c.current = s
	c.mu.Unlock()

	if prev != nil {
		prev.end()
	}

	buf, err := c.prepare(ctx, s.id, text, lang)
	if err != nil || buf == nil {
		if err != nil {
			c.fail(s, err)
		}
		c.release(s)
		s.end()
		return
	}

	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		c.log(diaglog.EventPlaybackStale, s.id, "superseded before start")
		s.end()
		return
	}
	// Set under c.mu so a preemptor that detaches s from here on defers
	// OnEnd until OnStart has returned.
	s.mu.Lock()
	s.starting = true
	s.mu.Unlock()
	c.mu.Unlock()

	if cb.OnStart != nil {
		cb.OnStart()
	}
	if s.started() {
		// Preempted while OnStart ran.
		return
	}

	c.mu.Lock()
	if c.current != s {
		// Preempted just after OnStart; the preemptor already ended s.
		c.mu.Unlock()
		return
	}
	voice, err := c.out.Play(buf, func() { c.finished(s) })
	if err != nil {
		c.current = nil
		c.mu.Unlock()
		c.fail(s, fmt.Errorf("start playback: %w", err))
		s.end()
		return
	}
	s.voice = voice
	c.mu.Unlock()

	c.log(diaglog.EventPlaybackStart, s.id, "")
}

// prepare readies the output and fetches the audio. A nil buffer with a nil
// error means there is nothing to play.
func (c *Controller) prepare(ctx context.Context, id uint64, text string, lang i18n.Language) (*audio.Buffer, error) {
	out, err := c.output()
	if err != nil {
		return nil, err
	}
	if out.Suspended() {
		if err := out.Resume(); err != nil {
			return nil, fmt.Errorf("resume output: %w", err)
		}
	}

	pcm, err := c.synth.Synthesize(ctx, text, lang)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if len(pcm) == 0 {
		c.log(diaglog.EventSpeechEmpty, id, "")
		return nil, nil
	}
	buf := audio.DecodePCM16(pcm)
	if len(buf.Samples) == 0 {
		return nil, errors.New("decode: no complete samples")
	}
	return buf, nil
}

// output returns the shared output, creating it on first use.
func (c *Controller) output() (audio.Output, error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	if c.out != nil {
		return c.out, nil
	}
	out, err := c.newOutput()
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	return out, nil
}

// finished handles natural completion of s. A notification from a session
// that is no longer current must leave the newer session alone.
func (c *Controller) finished(s *session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
		c.mu.Unlock()
		c.log(diaglog.EventPlaybackEnd, s.id, "")
	} else {
		c.mu.Unlock()
		c.log(diaglog.EventPlaybackStale, s.id, "completion after supersession")
	}
	s.end()
}

// release clears s as current if it still is.
func (c *Controller) release(s *session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}

// Stop halts the current session, if any, and cancels a pending request.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	prev := c.detachLocked()
	c.mu.Unlock()

	if prev != nil {
		prev.end()
	}
}

// detachLocked removes the current session, cancels its synthesis and halts
// its voice. The caller must hold c.mu and call end on the result after
// unlocking.
func (c *Controller) detachLocked() *session {
	s := c.current
	if s == nil {
		return nil
	}
	c.current = nil
	s.cancel()
	if s.voice != nil {
		if err := s.voice.Stop(); err != nil && !errors.Is(err, audio.ErrVoiceFinished) {
			log.Printf("player: stop session %d: %v", s.id, err)
		}
	}
	c.log(diaglog.EventPlaybackStop, s.id, "")
	return s
}

func (c *Controller) fail(s *session, err error) {
	if errors.Is(err, context.Canceled) {
		c.log(diaglog.EventPlaybackStale, s.id, err.Error())
		return
	}
	log.Printf("player: session %d: %v", s.id, err)
	c.log(diaglog.EventPlaybackFailed, s.id, err.Error())
}

// State reports whether a session is pending, playing or neither.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.current == nil:
		return StateIdle
	case c.current.voice == nil:
		return StateStarting
	default:
		return StatePlaying
	}
}
