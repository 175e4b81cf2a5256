// Package ipc exchanges state and commands with local clients through files
// in the cache directory.
package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/athar/internal/scanner"
)

const (
	statusFile  = "status.json"
	commandFile = "cmd.txt"
)

// DefaultDir returns ~/.cache/athar, or ATHAR_CACHE_DIR when set.
func DefaultDir() string {
	if d := os.Getenv("ATHAR_CACHE_DIR"); d != "" {
		return d
	}
	return filepath.Join(os.Getenv("HOME"), ".cache", "athar")
}

// StatusSnapshot is the daemon state written to status.json.
type StatusSnapshot struct {
	scanner.Snapshot
	GatewayOK      bool      `json:"gateway_ok"`      // last health check result
	GatewayBackend string    `json:"gateway_backend"` // gateway implementation name
	PID            int       `json:"pid"`
	Timestamp      time.Time `json:"timestamp"` // snapshot time
}

// StatusPath returns the status file inside dir.
func StatusPath(dir string) string {
	return filepath.Join(dir, statusFile)
}

// WriteStatus persists status to dir/status.json using atomic write.
func WriteStatus(dir string, status *StatusSnapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(dir), status)
}

// ReadStatus loads the snapshot from dir/status.json.
func ReadStatus(dir string) (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath(dir))
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil

	return os.Rename(tmpPath, path)
}
