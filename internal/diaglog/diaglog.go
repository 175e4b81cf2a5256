// Package diaglog provides structured NDJSON diagnostic logging for Athar.
// Activated by ATHAR_DEBUG=true. When the env var is absent, all Log calls
// are no-ops and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// DefaultPath is used when ATHAR_LOG_PATH is unset.
const DefaultPath = "/tmp/athar-debug.log"

// maxLogSize caps the debug log file.
const maxLogSize = 10 * 1024 * 1024

// ── Component labels ─────────────────────────────────────────────────────────

const (
	ComponentGateway    = "gateway"
	ComponentPlayer     = "player"
	ComponentHistory    = "history"
	ComponentScanner    = "scanner"
	ComponentImaging    = "imaging"
	ComponentUI         = "ui-ws"
	ComponentDiagExport = "diag-export"
	ComponentCore       = "athar-core"
)

// ── Event names ──────────────────────────────────────────────────────────────

const (
	EventAnalyzeRequest   = "analyze_request"
	EventAnalyzeResult    = "analyze_result"
	EventAnalyzeFailed    = "analyze_failed"
	EventAnalyzeRejected  = "analyze_rejected"
	EventSpeechRequest    = "speech_request"
	EventSpeechEmpty      = "speech_empty"
	EventHealthCheck      = "health_check"
	EventCompressFallback = "compress_fallback"
	EventPlaybackStart    = "playback_start"
	EventPlaybackEnd      = "playback_end"
	EventPlaybackStop     = "playback_stop"
	EventPlaybackFailed   = "playback_failed"
	EventPlaybackStale    = "playback_stale"
	EventHistoryLoad      = "history_load"
	EventHistoryCorrupt   = "history_corrupt"
	EventHistoryRecord    = "history_record"
	EventHistoryTrimmed   = "history_trimmed"
	EventHistoryPersist   = "history_persist_failed"
	EventClientConnect    = "client_connect"
	EventClientDisconnect = "client_disconnect"
	EventCommand          = "command"
)

// ── LogEntry ─────────────────────────────────────────────────────────────────

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`                   // RFC3339Nano
	Component string      `json:"component"`            // see Component* constants
	Event     string      `json:"event"`                // see Event* constants
	SessionID string      `json:"session_id,omitempty"` // playback session or history id
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// ── Logger ───────────────────────────────────────────────────────────────────

// Logger writes LogEntry values to a size-capped NDJSON file. When debug mode is
// disabled every Log call is a no-op.
type Logger struct {
	out     *cappedFile
	mu      sync.Mutex
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	out, err := openCapped(path, maxLogSize)
	if err != nil {
		return nil, err
	}
	return &Logger{out: out, enabled: true}, nil
}

// Log serialises entry to JSON and appends it to the log file. Sensitive
// payload fields are redacted before serialisation. Safe on a nil logger.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(data)
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.close()
}

// Enabled reports whether entries are actually written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// IsDebugEnabled reports whether ATHAR_DEBUG is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv("ATHAR_DEBUG") == "true"
}

// PathFromEnv returns ATHAR_LOG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("ATHAR_LOG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}
