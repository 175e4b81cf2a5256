package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeDebugLog writes content to a debug log in a fresh directory.
func writeDebugLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "athar-debug.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func entries(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `{"ts":"2026-03-01T09:00:00Z","component":"scanner","event":"analysis_complete","reason":"%d"}`+"\n", i)
	}
	return b.String()
}

// readBundle splits an exported file into its header and the copied lines.
func readBundle(t *testing.T, path string) (Bundle, []string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	if !s.Scan() {
		t.Fatal("bundle is empty")
	}
	var header Bundle
	if err := json.Unmarshal(s.Bytes(), &header); err != nil {
		t.Fatalf("bundle header: %v", err)
	}
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return header, lines
}

func TestExport(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "copies every entry",
			content: entries(3),
			want:    strings.Split(strings.TrimSuffix(entries(3), "\n"), "\n"),
		},
		{
			name:    "drops blank lines",
			content: "{\"event\":\"scan\"}\n\n   \n{\"event\":\"speak\"}",
			want:    []string{`{"event":"scan"}`, `{"event":"speak"}`},
		},
		{
			name:    "empty log",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeDebugLog(t, tt.content)
			dest := t.TempDir()

			out, n, err := Export(src, dest)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if filepath.Dir(out) != dest || !strings.HasPrefix(filepath.Base(out), "athar-diag-") {
				t.Errorf("unexpected bundle path %s", out)
			}
			if n != len(tt.want) {
				t.Errorf("copied %d lines, want %d", n, len(tt.want))
			}

			header, lines := readBundle(t, out)
			if header.EntryCount != len(tt.want) || header.LogFile != src {
				t.Errorf("unexpected header %+v", header)
			}
			if header.Version == "" || header.GoVersion == "" || header.OS == "" || header.Arch == "" {
				t.Errorf("header lacks build info: %+v", header)
			}
			if _, err := time.Parse(time.RFC3339, header.ExportedAt); err != nil {
				t.Errorf("exported_at %q: %v", header.ExportedAt, err)
			}
			if strings.Join(lines, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("lines:\n%v\nwant:\n%v", lines, tt.want)
			}
		})
	}
}

func TestExport_NoDebugLog(t *testing.T) {
	_, _, err := Export(filepath.Join(t.TempDir(), "athar-debug.log"), t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist so the CLI can hint at ATHAR_DEBUG, got %v", err)
	}
}

func TestExport_FullSizeLog(t *testing.T) {
	src := writeDebugLog(t, entries(20000))

	start := time.Now()
	_, n, err := Export(src, t.TempDir())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 20000 {
		t.Errorf("copied %d lines", n)
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Errorf("export took %v", d)
	}
}
