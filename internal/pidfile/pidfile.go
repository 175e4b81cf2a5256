// Package pidfile keeps a single daemon instance per cache directory.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// RunningError reports another live instance.
type RunningError struct {
	PID int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("another instance is already running (PID %d)", e.PID)
}

// PIDFile is a held PID file.
type PIDFile struct {
	path string
	pid  int
}

// Path returns dir/<name>.pid.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".pid")
}

// Acquire creates the PID file at path for the current process. A file left
// by a dead process is replaced; a live one yields *RunningError.
func Acquire(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", pid)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write PID file: %w", errors.Join(werr, cerr))
			}
			return &PIDFile{path: path, pid: pid}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create PID file: %w", err)
		}

		existing, rerr := Read(path)
		if rerr == nil && existing != pid && isProcessRunning(existing) {
			return nil, &RunningError{PID: existing}
		}
		// Stale or unreadable; remove and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale PID file: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to acquire PID file %s", path)
}

// Read returns the PID recorded at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", path, err)
	}
	return pid, nil
}

// Running returns the PID at path if that process is alive.
func Running(path string) (int, bool) {
	pid, err := Read(path)
	if err != nil || !isProcessRunning(pid) {
		return 0, false
	}
	return pid, true
}

// Release deletes the PID file if it still holds our PID.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if pid, err := Read(p.path); err == nil && pid == p.pid {
		return os.Remove(p.path)
	}
	return nil
}

// isProcessRunning sends signal 0 to pid.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, syscall.EPERM):
		// Exists, owned by someone else.
		return true
	default:
		return false
	}
}
