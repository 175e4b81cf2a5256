package testutil

import (
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
)

// LogCapture captures the standard logger's output for one test.
type LogCapture struct {
	buf      bytes.Buffer
	mu       sync.Mutex
	original io.Writer
}

// CaptureLog redirects the standard logger until the test ends.
func CaptureLog(t *testing.T) *LogCapture {
	t.Helper()
	lc := &LogCapture{original: log.Writer()}
	log.SetOutput(lc)
	t.Cleanup(func() { log.SetOutput(lc.original) })
	return lc
}

// Write implements io.Writer.
func (lc *LogCapture) Write(p []byte) (int, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.buf.Write(p)
}

// String returns all captured log output
func (lc *LogCapture) String() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.buf.String()
}

// Contains checks if the log output contains the given substring
func (lc *LogCapture) Contains(substr string) bool {
	return strings.Contains(lc.String(), substr)
}

// Count returns the number of times a substring appears in the log
func (lc *LogCapture) Count(substr string) int {
	return strings.Count(lc.String(), substr)
}

// Lines returns all captured log lines
func (lc *LogCapture) Lines() []string {
	content := strings.TrimSpace(lc.String())
	if content == "" {
		return []string{}
	}
	return strings.Split(content, "\n")
}
