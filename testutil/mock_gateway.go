package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/tiroq/athar/internal/gateway"
)

// MockGateway simulates the remote analysis/speech API for testing.
type MockGateway struct {
	server *httptest.Server

	mu       sync.Mutex
	mode     string
	result   gateway.AnalysisResult
	audio    []byte
	delay    time.Duration
	analyzes int
	speeches int
	lastAuth string
	lastBody map[string]interface{}
}

// Failure modes define how the mock gateway behaves.
const (
	ModeNormal      = "normal"
	ModeServerError = "server_error" // 500 on every endpoint
	ModeMalformed   = "malformed"    // 200 with a non-JSON body
	ModeIncomplete  = "incomplete"   // analysis missing a locale
	ModeNoAudio     = "no_audio"     // speech answers 204
)

// SampleResult returns a complete analysis result for a Cuneiform tablet.
func SampleResult() gateway.AnalysisResult {
	return gateway.AnalysisResult{
		DetectedLanguage: "Cuneiform",
		Transliteration:  "a-na",
		RawText:          "𒀀𒈾",
		Translations: gateway.LocalizedText{
			AR: "مرحبا", EN: "hello", FR: "bonjour",
		},
		HistoricalContext: gateway.LocalizedText{
			AR: "سومر", EN: "Sumer, third millennium BC", FR: "Sumer",
		},
		LinguisticAnalysis: gateway.LocalizedText{
			AR: "مقطعي", EN: "syllabic", FR: "syllabique",
		},
		Confidence: 0.92,
		ScriptType: "logo-syllabic",
	}
}

// NewMockGateway starts a mock gateway serving SampleResult and a short
// PCM16 clip. Close it with Close.
func NewMockGateway() *MockGateway {
	m := &MockGateway{
		mode:   ModeNormal,
		result: SampleResult(),
		audio:  []byte{0x00, 0x40, 0x00, 0xc0},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyze", m.handleAnalyze)
	mux.HandleFunc("/v1/speech", m.handleSpeech)
	mux.HandleFunc("/v1/health", m.handleHealth)
	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the base URL of the mock gateway.
func (m *MockGateway) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockGateway) Close() {
	m.server.Close()
}

// SetFailureMode configures how the server responds to requests.
func (m *MockGateway) SetFailureMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SetResult replaces the analysis result.
func (m *MockGateway) SetResult(r gateway.AnalysisResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
}

// SetAudio replaces the PCM16 speech payload.
func (m *MockGateway) SetAudio(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = pcm
}

// SetDelay makes every response wait d first.
func (m *MockGateway) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// AnalyzeCalls returns how many analysis requests were received.
func (m *MockGateway) AnalyzeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzes
}

// SpeechCalls returns how many speech requests were received.
func (m *MockGateway) SpeechCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speeches
}

// LastAuthorization returns the Authorization header of the last request.
func (m *MockGateway) LastAuthorization() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth
}

// LastBody returns the decoded JSON body of the last POST.
func (m *MockGateway) LastBody() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

// begin records the request and returns the current mode. It honours the
// configured delay, returning early if the client goes away.
func (m *MockGateway) begin(r *http.Request) string {
	m.mu.Lock()
	m.lastAuth = r.Header.Get("Authorization")
	if r.Method == http.MethodPost {
		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(data, &body)
		m.lastBody = body
	}
	mode, delay := m.mode, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
	}
	return mode
}

func (m *MockGateway) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.analyzes++
	m.mu.Unlock()

	switch m.begin(r) {
	case ModeServerError:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	case ModeMalformed:
		fmt.Fprint(w, "<html>not json</html>")
		return
	case ModeIncomplete:
		m.mu.Lock()
		res := m.result
		m.mu.Unlock()
		res.Translations.FR = ""
		writeJSON(w, res)
		return
	}

	m.mu.Lock()
	res := m.result
	m.mu.Unlock()
	writeJSON(w, res)
}

func (m *MockGateway) handleSpeech(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.speeches++
	m.mu.Unlock()

	switch m.begin(r) {
	case ModeServerError:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	case ModeMalformed:
		fmt.Fprint(w, "{")
		return
	case ModeNoAudio:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	m.mu.Lock()
	pcm := m.audio
	m.mu.Unlock()
	writeJSON(w, map[string]string{"audio": base64.StdEncoding.EncodeToString(pcm)})
}

func (m *MockGateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if m.begin(r) == ModeServerError {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
