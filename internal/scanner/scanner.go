// Package scanner drives one inscription analysis at a time: compress the
// photograph, ask the gateway, archive the result, and speak it on request.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/facts"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/history"
	"github.com/tiroq/athar/internal/i18n"
	"github.com/tiroq/athar/internal/imaging"
	"github.com/tiroq/athar/internal/player"
)

var (
	// ErrBusy is returned by Submit while another analysis is in flight.
	ErrBusy = errors.New("scanner: analysis already in progress")
	// ErrNoResult is returned by Speak when nothing is displayed.
	ErrNoResult = errors.New("scanner: no result to speak")
	// ErrUnknownEntry is returned by Replay for an id not in the archive.
	ErrUnknownEntry = errors.New("scanner: unknown history entry")
)

// Speaker plays synthesized speech. *player.Controller implements it.
type Speaker interface {
	Play(ctx context.Context, text string, lang i18n.Language, cb player.Callbacks)
	Stop()
	State() player.State
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// Options configures a Scanner.
type Options struct {
	Analyzer     gateway.Analyzer
	Speaker      Speaker
	History      *history.Store
	Notifier     Notifier // optional
	Language     i18n.Language
	FactInterval time.Duration
	Now          func() time.Time // defaults to time.Now
}

// Scanner is the analysis pipeline and the state shown to the user.
type Scanner struct {
	analyzer gateway.Analyzer
	speaker  Speaker
	history  *history.Store
	notifier Notifier
	now      func() time.Time
	rotator  *facts.Rotator

	// rotMu serializes rotator restarts between Submit and SetLanguage.
	rotMu sync.Mutex

	mu          sync.Mutex
	lang        i18n.Language
	waiting     bool
	image       string
	result      *gateway.AnalysisResult
	resultID    string
	speaking    bool
	speakGen    uint64
	lastError   string
	lastWarning string
	subs        []func(Snapshot)

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a scanner. The history store should already be loaded.
func New(opts Options) *Scanner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.Language.Valid() {
		opts.Language = i18n.Default
	}
	s := &Scanner{
		analyzer: opts.Analyzer,
		speaker:  opts.Speaker,
		history:  opts.History,
		notifier: opts.Notifier,
		now:      opts.Now,
		lang:     opts.Language,
	}
	s.rotator = facts.NewRotator(opts.FactInterval, func(facts.Change) { s.publish() })
	return s
}

// SetLogger injects a diaglog.Logger for debug logging.
func (s *Scanner) SetLogger(l *diaglog.Logger) {
	s.loggerMu.Lock()
	s.logger = l
	s.loggerMu.Unlock()
}

func (s *Scanner) log(entry diaglog.LogEntry) {
	s.loggerMu.RLock()
	l := s.logger
	s.loggerMu.RUnlock()
	entry.Component = diaglog.ComponentScanner
	l.Log(entry)
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not block.
func (s *Scanner) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Scanner) publish() {
	snap := s.Snapshot()
	s.mu.Lock()
	subs := append([]func(Snapshot){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// SetSource replaces the fact rotator's random source.
func (s *Scanner) SetSource(rng facts.Source) {
	s.rotator.SetSource(rng)
}

// Submit analyses the photograph in dataURI. It returns ErrBusy without side
// effects if an analysis is already running. On success the result is
// displayed and archived exactly once.
func (s *Scanner) Submit(ctx context.Context, dataURI string) (*gateway.AnalysisResult, error) {
	s.mu.Lock()
	if s.waiting {
		s.mu.Unlock()
		s.log(diaglog.LogEntry{Event: diaglog.EventAnalyzeRejected, Reason: ErrBusy.Error()})
		return nil, ErrBusy
	}
	s.waiting = true
	s.result = nil
	s.resultID = ""
	s.lastError = ""
	s.lastWarning = ""
	s.mu.Unlock()

	s.speaker.Stop()
	s.startRotator()
	s.publish()
	defer s.finishWaiting()

	comp := imaging.Compress(dataURI)
	if comp.Fallback != nil {
		s.log(diaglog.LogEntry{
			Component: diaglog.ComponentImaging,
			Event:     diaglog.EventCompressFallback,
			Reason:    comp.Fallback.Error(),
		})
	}
	s.mu.Lock()
	s.image = comp.DataURI
	s.mu.Unlock()

	res, err := s.analyze(ctx, comp.DataURI)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	item, err := history.NewItem(comp.DataURI, *res, s.now())
	if err != nil {
		s.fail(err)
		return nil, err
	}
	warning := ""
	if err := s.history.Record(item); err != nil {
		var pe *history.PersistError
		if errors.As(err, &pe) {
			log.Printf("scanner: %v", err)
			warning = err.Error()
		} else {
			s.fail(err)
			return nil, err
		}
	}

	s.mu.Lock()
	s.result = res
	s.resultID = item.ID
	s.lastWarning = warning
	lang := s.lang
	s.mu.Unlock()

	s.notify(i18n.T(lang, i18n.KeyDone), res.DetectedLanguage)
	return res, nil
}

func (s *Scanner) analyze(ctx context.Context, dataURI string) (*gateway.AnalysisResult, error) {
	mime, payload, err := imaging.DecodeDataURI(dataURI)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return s.analyzer.Analyze(ctx, payload, mime)
}

// fail shows the generic localized error. History and the archive are left
// untouched.
func (s *Scanner) fail(err error) {
	log.Printf("scanner: analysis failed: %v", err)
	s.log(diaglog.LogEntry{Event: diaglog.EventAnalyzeFailed, Reason: err.Error()})

	s.mu.Lock()
	lang := s.lang
	msg := i18n.T(lang, i18n.KeyError)
	s.lastError = msg
	s.mu.Unlock()

	s.notify(i18n.T(lang, i18n.KeyScannerTitle), msg)
}

func (s *Scanner) notify(title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(title, message); err != nil {
		log.Printf("scanner: notify: %v", err)
	}
}

func (s *Scanner) startRotator() {
	s.rotMu.Lock()
	defer s.rotMu.Unlock()
	s.rotator.Start(s.Language())
}

// finishWaiting leaves the waiting state. No fact rotation is delivered
// after it returns.
func (s *Scanner) finishWaiting() {
	s.rotMu.Lock()
	s.mu.Lock()
	s.waiting = false
	s.mu.Unlock()
	s.rotator.Stop()
	s.rotMu.Unlock()

	s.publish()
}

// SetLanguage switches the display language. Speech is stopped and, while
// waiting, facts continue in the new language.
func (s *Scanner) SetLanguage(lang i18n.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("scanner: unsupported language %q", lang)
	}
	s.speaker.Stop()

	s.rotMu.Lock()
	s.mu.Lock()
	s.lang = lang
	waiting := s.waiting
	s.mu.Unlock()
	if waiting {
		s.rotator.Start(lang)
	}
	s.rotMu.Unlock()

	s.publish()
	return nil
}

// Language returns the display language.
func (s *Scanner) Language() i18n.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Replay displays an archived analysis.
func (s *Scanner) Replay(id string) error {
	item, ok := s.history.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, id)
	}
	s.speaker.Stop()

	s.mu.Lock()
	res := item.Result
	s.image = item.Image
	s.result = &res
	s.resultID = item.ID
	s.lastError = ""
	s.mu.Unlock()

	s.publish()
	return nil
}

// Speak reads the displayed translation aloud in the current language. It
// returns once playback has started or ended.
func (s *Scanner) Speak(ctx context.Context) error {
	s.mu.Lock()
	res, lang := s.result, s.lang
	s.speakGen++
	gen := s.speakGen
	s.mu.Unlock()

	if res == nil {
		return ErrNoResult
	}

	s.speaker.Play(ctx, res.Translations.Get(lang), lang, player.Callbacks{
		OnStart: func() { s.setSpeaking(gen, true) },
		OnEnd:   func() { s.setSpeaking(gen, false) },
	})
	return nil
}

func (s *Scanner) setSpeaking(gen uint64, on bool) {
	s.mu.Lock()
	if gen != s.speakGen {
		s.mu.Unlock()
		return
	}
	s.speaking = on
	s.mu.Unlock()
	s.publish()
}

// StopSpeech halts any speech.
func (s *Scanner) StopSpeech() {
	s.speaker.Stop()
}
