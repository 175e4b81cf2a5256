// Package gateway defines the boundary to the remote AI service that analyses
// inscription photographs and synthesizes speech.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tiroq/athar/internal/i18n"
)

// ErrIncomplete reports an analysis result that is missing a localized entry.
var ErrIncomplete = errors.New("gateway: incomplete localized text")

// LocalizedText holds one string per supported language.
type LocalizedText struct {
	AR string `json:"ar"`
	EN string `json:"en"`
	FR string `json:"fr"`
}

// Get returns the text for lang, or "" for an unknown language.
func (t LocalizedText) Get(lang i18n.Language) string {
	switch lang {
	case i18n.AR:
		return t.AR
	case i18n.EN:
		return t.EN
	case i18n.FR:
		return t.FR
	}
	return ""
}

// missing returns the languages without an entry.
func (t LocalizedText) missing() []i18n.Language {
	var out []i18n.Language
	for _, l := range i18n.Languages() {
		if t.Get(l) == "" {
			out = append(out, l)
		}
	}
	return out
}

// AnalysisResult is the structured output of one analysis call.
type AnalysisResult struct {
	DetectedLanguage   string        `json:"detectedLanguage"`
	Transliteration    string        `json:"transliteration,omitempty"`
	RawText            string        `json:"rawText"`
	Translations       LocalizedText `json:"translations"`
	HistoricalContext  LocalizedText `json:"historicalContexts"`
	LinguisticAnalysis LocalizedText `json:"linguisticAnalyses"`
	Confidence         float64       `json:"confidence"` // 0.0–1.0, not enforced
	ScriptType         string        `json:"scriptType"`
	OriginalScript     string        `json:"originalScript,omitempty"`
}

// Validate checks that every localized field has an entry for every language.
func (r *AnalysisResult) Validate() error {
	fields := []struct {
		name string
		text LocalizedText
	}{
		{"translations", r.Translations},
		{"historicalContexts", r.HistoricalContext},
		{"linguisticAnalyses", r.LinguisticAnalysis},
	}
	for _, f := range fields {
		if miss := f.text.missing(); len(miss) > 0 {
			return fmt.Errorf("%w: %s missing %v", ErrIncomplete, f.name, miss)
		}
	}
	return nil
}

// HealthStatus reports gateway health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Analyzer turns an inscription photograph into an AnalysisResult.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*AnalysisResult, error)
}

// Synthesizer turns text into raw PCM16 speech. An empty slice with a nil
// error means there is nothing to play.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang i18n.Language) ([]byte, error)
}

// Gateway is the full remote service.
type Gateway interface {
	Analyzer
	Synthesizer
	Name() string
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// StatusError is returned for non-2xx gateway responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
}
