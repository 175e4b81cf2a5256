// Package history keeps the bounded archive of past analyses.
//
// The archive is an ordered list, most recent first, capped at MaxItems.
// Every change is written through to a storage.Backend under a single key
// before Record returns.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/storage"
)

const (
	// MaxItems is the number of analyses kept.
	MaxItems = 12
	// Key is the storage key holding the serialized archive.
	Key = "athar_v13_pro"
)

// Item is one archived scan.
type Item struct {
	ID        string                 `json:"id"`
	Timestamp int64                  `json:"timestamp"` // Unix milliseconds
	Image     string                 `json:"img"`       // data URI
	Result    gateway.AnalysisResult `json:"res"`
}

// NewItem stamps a new archive entry with a time-ordered id.
func NewItem(image string, res gateway.AnalysisResult, now time.Time) (Item, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Item{}, fmt.Errorf("generate id: %w", err)
	}
	return Item{
		ID:        id.String(),
		Timestamp: now.UnixMilli(),
		Image:     image,
		Result:    res,
	}, nil
}

// PersistError reports that the archive could not be written. The in-memory
// archive still holds the recorded item.
type PersistError struct {
	Dropped int // oldest entries discarded while trying to fit the quota
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist history: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store is the archive. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	items   []Item

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates an empty store on top of backend. Call Load to read the
// persisted archive.
func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (s *Store) SetLogger(l *diaglog.Logger) {
	s.loggerMu.Lock()
	s.logger = l
	s.loggerMu.Unlock()
}

func (s *Store) log(entry diaglog.LogEntry) {
	s.loggerMu.RLock()
	l := s.logger
	s.loggerMu.RUnlock()
	entry.Component = diaglog.ComponentHistory
	l.Log(entry)
}

// Load replaces the in-memory archive with the persisted one. Missing,
// unreadable or corrupt data leaves the archive empty; the failure is logged
// and never returned.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	data, err := s.backend.Get(Key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log(diaglog.LogEntry{Event: diaglog.EventHistoryCorrupt, Reason: err.Error()})
		}
		return
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		s.log(diaglog.LogEntry{Event: diaglog.EventHistoryCorrupt, Reason: err.Error()})
		return
	}
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	s.items = items
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventHistoryLoad,
		Payload: map[string]interface{}{"count": len(items)},
	})
}

// Record prepends item, keeps the newest MaxItems entries and persists the
// result before returning.
//
// When the backend rejects the write with storage.ErrQuotaExceeded the
// oldest entries are dropped one at a time until the write fits, never
// dropping item itself. Any remaining failure is returned as *PersistError.
func (s *Store) Record(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items) + 1
	if n > MaxItems {
		n = MaxItems
	}
	next := make([]Item, 0, n)
	next = append(next, item)
	next = append(next, s.items[:n-1]...)
	s.items = next

	s.log(diaglog.LogEntry{
		Event:     diaglog.EventHistoryRecord,
		SessionID: item.ID,
		Payload:   map[string]interface{}{"count": len(next)},
	})

	err := s.persist(next)
	dropped := 0
	for errors.Is(err, storage.ErrQuotaExceeded) && len(next)-dropped > 1 {
		dropped++
		err = s.persist(next[:len(next)-dropped])
	}
	if err != nil {
		s.log(diaglog.LogEntry{
			Event:     diaglog.EventHistoryPersist,
			SessionID: item.ID,
			Reason:    err.Error(),
		})
		return &PersistError{Dropped: dropped, Err: err}
	}
	if dropped > 0 {
		s.items = next[:len(next)-dropped]
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventHistoryTrimmed,
			Payload: map[string]interface{}{"dropped": dropped},
		})
	}
	return nil
}

func (s *Store) persist(items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.backend.Put(Key, data)
}

// Items returns a copy of the archive, most recent first.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the archived item with the given id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Len returns the number of archived items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
