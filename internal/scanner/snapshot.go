package scanner

import (
	"time"

	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/i18n"
)

// Snapshot is an immutable view of the scanner for status surfaces.
type Snapshot struct {
	Language    i18n.Language           `json:"language"`
	Direction   i18n.Direction          `json:"direction"`
	Waiting     bool                    `json:"waiting"`
	Label       string                  `json:"label"` // scan button / waiting label
	Fact        string                  `json:"fact,omitempty"`
	Image       string                  `json:"image,omitempty"` // data URI of the displayed photo
	Result      *gateway.AnalysisResult `json:"result,omitempty"`
	ResultID    string                  `json:"result_id,omitempty"`
	Speaking    bool                    `json:"speaking"`
	Playback    string                  `json:"playback"`
	LastError   string                  `json:"last_error,omitempty"`
	LastWarning string                  `json:"last_warning,omitempty"`
	History     []Entry                 `json:"history"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Entry summarizes one archived scan in the current language.
type Entry struct {
	ID               string `json:"id"`
	Timestamp        int64  `json:"timestamp"`
	DetectedLanguage string `json:"detected_language"`
	Translation      string `json:"translation"`
}

// Snapshot returns the current state.
func (s *Scanner) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Language:    s.lang,
		Direction:   s.lang.Direction(),
		Waiting:     s.waiting,
		Image:       s.image,
		ResultID:    s.resultID,
		Speaking:    s.speaking,
		LastError:   s.lastError,
		LastWarning: s.lastWarning,
		UpdatedAt:   s.now(),
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	s.mu.Unlock()

	if snap.Waiting {
		snap.Label = i18n.T(snap.Language, i18n.KeyDecrypting)
		snap.Fact = s.rotator.Current().Fact
	} else {
		snap.Label = i18n.T(snap.Language, i18n.KeyScan)
	}
	snap.Playback = string(s.speaker.State())

	items := s.history.Items()
	snap.History = make([]Entry, len(items))
	for i, it := range items {
		snap.History[i] = Entry{
			ID:               it.ID,
			Timestamp:        it.Timestamp,
			DetectedLanguage: it.Result.DetectedLanguage,
			Translation:      it.Result.Translations.Get(snap.Language),
		}
	}
	return snap
}
