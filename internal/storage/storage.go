// Package storage provides small durable key/value backends used for local
// persistence.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrNotFound is returned by Get for a key that was never written.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Put when the value does not fit.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Backend stores opaque values by key. Put replaces the whole value.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Close() error
}

// Open builds the backend named by kind ("file" or "sqlite") rooted at dir.
func Open(kind, dir string) (Backend, error) {
	switch kind {
	case "", "file":
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		b, err := OpenSQLite(filepath.Join(dir, "athar.sqlite"))
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}

// quotaBackend rejects values larger than max bytes.
type quotaBackend struct {
	Backend
	max int
}

// WithQuota wraps b so that Put fails with ErrQuotaExceeded for values longer
// than maxBytes. A non-positive maxBytes returns b unchanged.
func WithQuota(b Backend, maxBytes int) Backend {
	if maxBytes <= 0 {
		return b
	}
	return &quotaBackend{Backend: b, max: maxBytes}
}

func (q *quotaBackend) Put(key string, value []byte) error {
	if len(value) > q.max {
		return fmt.Errorf("put %s (%d bytes, limit %d): %w", key, len(value), q.max, ErrQuotaExceeded)
	}
	return q.Backend.Put(key, value)
}
