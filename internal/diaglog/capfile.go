package diaglog

import "os"

// cappedFile is an append-only NDJSON sink that never grows past limit bytes.
// An append that would cross the limit reopens the file empty and lands
// first, so the log always ends with the newest entries. Callers serialise
// access (Logger holds its own mutex).
type cappedFile struct {
	path    string
	limit   int64
	f       *os.File
	written int64
}

func openCapped(path string, limit int64) (*cappedFile, error) {
	c := &cappedFile{path: path, limit: limit}
	if err := c.open(os.O_APPEND); err != nil {
		return nil, err
	}
	// A log left over from a run with a larger cap starts over too.
	if c.written > limit {
		if err := c.restart(); err != nil {
			_ = c.f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *cappedFile) open(mode int) error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	c.f, c.written = f, info.Size()
	return nil
}

func (c *cappedFile) restart() error {
	if err := c.f.Close(); err != nil {
		return err
	}
	return c.open(os.O_TRUNC | os.O_APPEND)
}

func (c *cappedFile) Write(p []byte) (int, error) {
	if c.written > 0 && c.written+int64(len(p)) > c.limit {
		if err := c.restart(); err != nil {
			return 0, err
		}
	}
	n, err := c.f.Write(p)
	c.written += int64(n)
	if err == nil {
		// Entries must survive a crash of the daemon.
		err = c.f.Sync()
	}
	return n, err
}

func (c *cappedFile) close() error {
	_ = c.f.Sync()
	return c.f.Close()
}
