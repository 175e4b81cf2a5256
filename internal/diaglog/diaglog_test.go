package diaglog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readNDJSON(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line: %v -> %s", err, scanner.Text())
		}
		lines = append(lines, m)
	}
	return lines
}

func TestLogWritesNDJSON(t *testing.T) {
	t.Setenv("ATHAR_DEBUG", "true")

	path := filepath.Join(t.TempDir(), "test.ndjson")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Enabled() {
		t.Fatal("logger should be enabled")
	}

	entries := []LogEntry{
		{Component: ComponentGateway, Event: EventAnalyzeRequest},
		{Component: ComponentPlayer, Event: EventPlaybackStart, SessionID: "7"},
		{Component: ComponentHistory, Event: EventHistoryRecord, Payload: map[string]interface{}{"img": "data:..."}},
	}
	for _, e := range entries {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readNDJSON(t, path)
	if len(lines) != len(entries) {
		t.Fatalf("want %d lines, got %d", len(entries), len(lines))
	}
	if lines[0]["component"] != ComponentGateway {
		t.Errorf("component mismatch: %v", lines[0]["component"])
	}
	if lines[1]["session_id"] != "7" {
		t.Errorf("session_id mismatch: %v", lines[1]["session_id"])
	}
	if lines[0]["ts"] == nil {
		t.Error("ts field missing")
	}
	payload := lines[2]["payload"].(map[string]interface{})
	if payload["img"] != redacted {
		t.Errorf("img should be redacted, got %v", payload["img"])
	}
}

func TestRedactSensitiveFields(t *testing.T) {
	input := map[string]interface{}{
		"Authorization": "Bearer abc",
		"token":         "tok",
		"image":         "base64...",
		"audio":         "pcm...",
		"safe_field":    "keep-me",
		"nested": map[string]interface{}{
			"api_key": "k",
			"ok":      "value",
		},
		"list": []interface{}{map[string]interface{}{"secret": "s"}},
	}

	out := Redact(input).(map[string]interface{})
	for _, k := range []string{"Authorization", "token", "image", "audio"} {
		if out[k] != redacted {
			t.Errorf("key %q: want %s, got %v", k, redacted, out[k])
		}
	}
	if out["safe_field"] != "keep-me" {
		t.Error("safe_field should be preserved")
	}
	nested := out["nested"].(map[string]interface{})
	if nested["api_key"] != redacted {
		t.Error("nested api_key not redacted")
	}
	if nested["ok"] != "value" {
		t.Error("nested ok field should be preserved")
	}
	item := out["list"].([]interface{})[0].(map[string]interface{})
	if item["secret"] != redacted {
		t.Error("secret inside slice not redacted")
	}
	if input["token"] != "tok" {
		t.Error("input must not be mutated")
	}
}

func TestNoOpWhenDisabled(t *testing.T) {
	t.Setenv("ATHAR_DEBUG", "")

	path := filepath.Join(t.TempDir(), "noop.ndjson")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Log(LogEntry{Component: ComponentGateway, Event: EventAnalyzeRequest})
	_ = l.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("log file should not exist when debug disabled")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log(LogEntry{Component: ComponentPlayer, Event: EventPlaybackEnd})
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
	if l.Enabled() {
		t.Error("nil logger must report disabled")
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("ATHAR_LOG_PATH", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("want %s, got %s", DefaultPath, got)
	}
	t.Setenv("ATHAR_LOG_PATH", "/var/tmp/x.log")
	if got := PathFromEnv(); got != "/var/tmp/x.log" {
		t.Errorf("want override, got %s", got)
	}
}
