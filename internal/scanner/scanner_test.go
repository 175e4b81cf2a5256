package scanner

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/tiroq/athar/internal/audio"
	"github.com/tiroq/athar/internal/facts"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/gateway/remote"
	"github.com/tiroq/athar/internal/history"
	"github.com/tiroq/athar/internal/i18n"
	"github.com/tiroq/athar/internal/player"
	"github.com/tiroq/athar/internal/storage"
	"github.com/tiroq/athar/testutil"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeAnalyzer struct {
	mu     sync.Mutex
	result gateway.AnalysisResult
	err    error
	gate   chan struct{}
	calls  int
	image  []byte
	mime   string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, img []byte, mime string) (*gateway.AnalysisResult, error) {
	a.mu.Lock()
	a.calls++
	a.image, a.mime = img, mime
	gate, res, err := a.gate, a.result, a.err
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeSpeaker struct {
	mu    sync.Mutex
	stops int
	plays []string
	cb    player.Callbacks
}

func (f *fakeSpeaker) Play(_ context.Context, text string, lang i18n.Language, cb player.Callbacks) {
	f.mu.Lock()
	f.plays = append(f.plays, string(lang)+":"+text)
	f.cb = cb
	f.mu.Unlock()
	if cb.OnStart != nil {
		cb.OnStart()
	}
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	f.stops++
	cb := f.cb
	f.cb = player.Callbacks{}
	f.mu.Unlock()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

func (f *fakeSpeaker) State() player.State { return player.StateIdle }

func (f *fakeSpeaker) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(title, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	return nil
}

type failingBackend struct{ err error }

func (b failingBackend) Get(string) ([]byte, error) { return nil, storage.ErrNotFound }
func (b failingBackend) Put(string, []byte) error   { return b.err }
func (b failingBackend) Close() error               { return nil }

// fakeOutput plays instantly and never finishes on its own.
type fakeOutput struct{}

type fakeVoice struct{}

func (fakeVoice) Stop() error { return nil }

func (fakeOutput) Suspended() bool { return false }
func (fakeOutput) Resume() error   { return nil }
func (fakeOutput) Play(*audio.Buffer, func()) (audio.Voice, error) {
	return fakeVoice{}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fileStore(t *testing.T, dir string) *history.Store {
	t.Helper()
	b, err := storage.Open("file", dir)
	testutil.AssertNoError(t, err, "open storage")
	t.Cleanup(func() { _ = b.Close() })
	h := history.New(b)
	h.Load()
	return h
}

func newScanner(t *testing.T, a gateway.Analyzer, sp Speaker) (*Scanner, *history.Store) {
	t.Helper()
	h := fileStore(t, t.TempDir())
	s := New(Options{Analyzer: a, Speaker: sp, History: h, FactInterval: time.Millisecond})
	return s, h
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestSubmit_EndToEndCuneiform(t *testing.T) {
	gw := testutil.NewMockGateway()
	defer gw.Close()

	dir := t.TempDir()
	h := fileStore(t, dir)
	client := remote.NewClient(remote.Config{BaseURL: gw.URL()})
	s := New(Options{Analyzer: client, Speaker: &fakeSpeaker{}, History: h, Language: i18n.EN})

	res, err := s.Submit(context.Background(), pngDataURI(t, 64, 32))
	testutil.AssertNoError(t, err, "Submit")

	want := testutil.SampleResult()
	testutil.AssertDeepEqual(t, want, *res, "returned result")

	snap := s.Snapshot()
	testutil.AssertDeepEqual(t, want, *snap.Result, "displayed result")
	testutil.AssertEqual(t, "hello", snap.Result.Translations.EN, "english translation")
	testutil.AssertFalse(t, snap.Waiting, "waiting after success")
	testutil.AssertEqual(t, "", snap.LastError, "last error")
	testutil.AssertEqual(t, 1, len(snap.History), "history entries")
	testutil.AssertEqual(t, "Cuneiform", snap.History[0].DetectedLanguage, "history detected language")
	testutil.AssertEqual(t, snap.ResultID, snap.History[0].ID, "displayed entry id")

	first := h.Items()[0]
	testutil.AssertEqual(t, "Cuneiform", first.Result.DetectedLanguage, "history first entry")
	testutil.AssertEqual(t, "image/jpeg", gw.LastBody()["mime_type"], "compressed mime type")

	// The archive survives a restart.
	reloaded := fileStore(t, dir)
	testutil.AssertDeepEqual(t, first, reloaded.Items()[0], "reloaded entry")
}

func TestSubmit_BusyRejected(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult(), gate: make(chan struct{})}
	s, h := newScanner(t, a, &fakeSpeaker{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
		done <- err
	}()
	testutil.WaitForCondition(t, func() bool { return a.callCount() == 1 }, 2*time.Second, "first analysis started")

	_, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertErrorIs(t, err, ErrBusy, "overlapping submit")

	close(a.gate)
	testutil.AssertNoError(t, <-done, "first submit")
	testutil.AssertEqual(t, 1, h.Len(), "history grows once")
	testutil.AssertEqual(t, 1, a.callCount(), "analyzer calls")

	// A new analysis is accepted once the first has finished.
	_, err = s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertNoError(t, err, "submit after completion")
	testutil.AssertEqual(t, 2, h.Len(), "history after second submit")
}

func TestSubmit_FailureShowsLocalizedError(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult()}
	n := &fakeNotifier{}
	h := fileStore(t, t.TempDir())
	s := New(Options{Analyzer: a, Speaker: &fakeSpeaker{}, History: h, Notifier: n, Language: i18n.FR})

	_, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertNoError(t, err, "first submit")

	a.mu.Lock()
	a.err = errors.New("gateway unavailable")
	a.mu.Unlock()

	_, err = s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertError(t, err, "failing submit")

	snap := s.Snapshot()
	testutil.AssertEqual(t, i18n.T(i18n.FR, i18n.KeyError), snap.LastError, "localized error")
	testutil.AssertFalse(t, snap.Waiting, "waiting cleared after failure")
	testutil.AssertTrue(t, snap.Result == nil, "result cleared")
	testutil.AssertEqual(t, 1, h.Len(), "history untouched by failure")

	n.mu.Lock()
	defer n.mu.Unlock()
	testutil.AssertEqual(t, 2, len(n.messages), "notifications")
	testutil.AssertEqual(t, i18n.T(i18n.FR, i18n.KeyError), n.messages[1], "failure notification")
}

func TestSubmit_CompressionFallbackSendsOriginal(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult()}
	s, h := newScanner(t, a, &fakeSpeaker{})

	original := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png"))
	_, err := s.Submit(context.Background(), original)
	testutil.AssertNoError(t, err, "Submit")

	a.mu.Lock()
	testutil.AssertEqual(t, "image/png", a.mime, "mime type of original")
	testutil.AssertEqual(t, "not a png", string(a.image), "original bytes")
	a.mu.Unlock()
	testutil.AssertEqual(t, original, h.Items()[0].Image, "archived image")
	testutil.AssertEqual(t, original, s.Snapshot().Image, "displayed image")
}

func TestSubmit_UnreadableInputFails(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult()}
	s, h := newScanner(t, a, &fakeSpeaker{})

	_, err := s.Submit(context.Background(), "not a data uri")
	testutil.AssertError(t, err, "unreadable input")
	testutil.AssertEqual(t, 0, a.callCount(), "analyzer not called")
	testutil.AssertEqual(t, 0, h.Len(), "history")
}

func TestSubmit_PersistFailureIsWarning(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult()}
	h := history.New(failingBackend{err: errors.New("disk full")})
	s := New(Options{Analyzer: a, Speaker: &fakeSpeaker{}, History: h})
	logs := testutil.CaptureLog(t)

	res, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertNoError(t, err, "analysis still succeeds")
	testutil.AssertEqual(t, "Cuneiform", res.DetectedLanguage, "result")
	testutil.AssertTrue(t, logs.Contains("disk full"), "persist failure logged")
	testutil.AssertEqual(t, 0, logs.Count("analysis failed"), "not reported as failure")

	snap := s.Snapshot()
	testutil.AssertStringContains(t, snap.LastWarning, "disk full", "warning")
	testutil.AssertEqual(t, 1, len(snap.History), "in-memory history kept")
}

func TestSubmit_StopsSpeech(t *testing.T) {
	sp := &fakeSpeaker{}
	s, _ := newScanner(t, &fakeAnalyzer{result: testutil.SampleResult()}, sp)

	_, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertNoError(t, err, "Submit")
	testutil.AssertEqual(t, 1, sp.stopCount(), "speech stopped on submit")
}

func TestSubmit_FactsOnlyWhileWaiting(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult(), gate: make(chan struct{})}
	s, _ := newScanner(t, a, &fakeSpeaker{})

	var mu sync.Mutex
	var shown []string
	published := 0
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		published++
		if snap.Waiting && snap.Fact != "" {
			shown = append(shown, snap.Fact)
		}
	})

	done := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), pngDataURI(t, 8, 8))
		close(done)
	}()

	testutil.WaitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(shown) >= 5
	}, 2*time.Second, "facts rotated while waiting")

	close(a.gate)
	<-done

	mu.Lock()
	after := published
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, after, published, "no rotation after waiting ended")
}

func TestSubscribe_EverySubscriberSeesChange(t *testing.T) {
	s, _ := newScanner(t, &fakeAnalyzer{}, &fakeSpeaker{})

	var got [2][]i18n.Language
	for i := range got {
		i := i
		s.Subscribe(func(snap Snapshot) { got[i] = append(got[i], snap.Language) })
	}
	testutil.AssertNoError(t, s.SetLanguage(i18n.FR), "SetLanguage")

	for i := range got {
		testutil.AssertEqual(t, 1, len(got[i]), "snapshots delivered")
		testutil.AssertEqual(t, i18n.FR, got[i][0], "snapshot language")
	}
}

func TestSetLanguage(t *testing.T) {
	sp := &fakeSpeaker{}
	s, _ := newScanner(t, &fakeAnalyzer{}, sp)

	testutil.AssertEqual(t, i18n.RTL, s.Snapshot().Direction, "default direction")

	err := s.SetLanguage("de")
	testutil.AssertError(t, err, "unsupported language")

	testutil.AssertNoError(t, s.SetLanguage(i18n.EN), "SetLanguage")
	snap := s.Snapshot()
	testutil.AssertEqual(t, i18n.EN, snap.Language, "language")
	testutil.AssertEqual(t, i18n.LTR, snap.Direction, "direction")
	testutil.AssertEqual(t, i18n.T(i18n.EN, i18n.KeyScan), snap.Label, "label")
	testutil.AssertEqual(t, 1, sp.stopCount(), "speech stopped on language switch")
}

func TestSetLanguage_WhileWaitingSwitchesFacts(t *testing.T) {
	a := &fakeAnalyzer{result: testutil.SampleResult(), gate: make(chan struct{})}
	s, _ := newScanner(t, a, &fakeSpeaker{})

	done := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), pngDataURI(t, 8, 8))
		close(done)
	}()
	testutil.WaitForCondition(t, func() bool { return a.callCount() == 1 }, 2*time.Second, "analysis started")

	testutil.AssertNoError(t, s.SetLanguage(i18n.FR), "SetLanguage")
	snap := s.Snapshot()
	testutil.AssertTrue(t, snap.Waiting, "still waiting")
	testutil.AssertEqual(t, i18n.T(i18n.FR, i18n.KeyDecrypting), snap.Label, "waiting label")

	found := false
	for _, f := range facts.For(i18n.FR) {
		if f == snap.Fact {
			found = true
		}
	}
	testutil.AssertTrue(t, found, "fact is french")

	close(a.gate)
	<-done
	testutil.AssertFalse(t, s.rotator.Running(), "rotator stopped")
}

func TestReplay(t *testing.T) {
	sp := &fakeSpeaker{}
	s, h := newScanner(t, &fakeAnalyzer{}, sp)

	older := testutil.SampleResult()
	older.DetectedLanguage = "Hieroglyphs"
	it, err := history.NewItem("data:image/jpeg;base64,AAAA", older, time.Now())
	testutil.AssertNoError(t, err, "NewItem")
	testutil.AssertNoError(t, h.Record(it), "Record")

	testutil.AssertNoError(t, s.Replay(it.ID), "Replay")
	snap := s.Snapshot()
	testutil.AssertEqual(t, "Hieroglyphs", snap.Result.DetectedLanguage, "replayed result")
	testutil.AssertEqual(t, it.Image, snap.Image, "replayed image")
	testutil.AssertEqual(t, it.ID, snap.ResultID, "replayed id")
	testutil.AssertEqual(t, 1, sp.stopCount(), "speech stopped on replay")

	testutil.AssertErrorIs(t, s.Replay("missing"), ErrUnknownEntry, "unknown id")
}

func TestSpeak(t *testing.T) {
	sp := &fakeSpeaker{}
	s, _ := newScanner(t, &fakeAnalyzer{result: testutil.SampleResult()}, sp)

	testutil.AssertErrorIs(t, s.Speak(context.Background()), ErrNoResult, "nothing displayed")

	_, err := s.Submit(context.Background(), pngDataURI(t, 8, 8))
	testutil.AssertNoError(t, err, "Submit")
	testutil.AssertNoError(t, s.SetLanguage(i18n.FR), "SetLanguage")

	testutil.AssertNoError(t, s.Speak(context.Background()), "Speak")
	sp.mu.Lock()
	testutil.AssertEqual(t, "fr:bonjour", sp.plays[0], "spoken text")
	sp.mu.Unlock()
	testutil.AssertTrue(t, s.Snapshot().Speaking, "speaking after start")

	s.StopSpeech()
	testutil.AssertFalse(t, s.Snapshot().Speaking, "speaking after stop")
}

func TestSpeak_ThroughPlayer(t *testing.T) {
	gw := testutil.NewMockGateway()
	defer gw.Close()

	client := remote.NewClient(remote.Config{BaseURL: gw.URL()})
	ctrl := player.New(client, func() (audio.Output, error) { return fakeOutput{}, nil })
	s, _ := newScanner(t, client, ctrl)

	_, err := s.Submit(context.Background(), pngDataURI(t, 16, 16))
	testutil.AssertNoError(t, err, "Submit")

	testutil.AssertNoError(t, s.Speak(context.Background()), "Speak")
	snap := s.Snapshot()
	testutil.AssertTrue(t, snap.Speaking, "speaking")
	testutil.AssertEqual(t, string(player.StatePlaying), snap.Playback, "playback state")
	testutil.AssertEqual(t, "ar", gw.LastBody()["locale"], "speech locale")

	s.StopSpeech()
	snap = s.Snapshot()
	testutil.AssertFalse(t, snap.Speaking, "speaking after stop")
	testutil.AssertEqual(t, string(player.StateIdle), snap.Playback, "playback after stop")
}

func TestSpeak_NoAudio(t *testing.T) {
	gw := testutil.NewMockGateway()
	defer gw.Close()
	gw.SetFailureMode(testutil.ModeNoAudio)

	client := remote.NewClient(remote.Config{BaseURL: gw.URL()})
	ctrl := player.New(client, func() (audio.Output, error) { return fakeOutput{}, nil })
	s, h := newScanner(t, &fakeAnalyzer{}, ctrl)

	it, err := history.NewItem("data:image/jpeg;base64,AAAA", testutil.SampleResult(), time.Now())
	testutil.AssertNoError(t, err, "NewItem")
	testutil.AssertNoError(t, h.Record(it), "Record")
	testutil.AssertNoError(t, s.Replay(it.ID), "Replay")

	testutil.AssertNoError(t, s.Speak(context.Background()), "Speak")
	testutil.AssertFalse(t, s.Snapshot().Speaking, "nothing to play")
}
