// Package notify shows desktop notifications for finished analyses.
package notify

import (
	"sync"
	"unicode/utf8"

	"github.com/gen2brain/beeep"
)

const appName = "Athar"

// maxMessage is the longest message body shown, in runes.
const maxMessage = 100

// Notifier sends desktop notifications.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
	send    func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify}
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

// Notify shows message under title. It is a no-op while disabled.
func (n *Notifier) Notify(title, message string) error {
	n.mu.Lock()
	enabled, send := n.enabled, n.send
	n.mu.Unlock()
	if !enabled {
		return nil
	}

	heading := appName
	if title != "" {
		heading = appName + ": " + title
	}
	return send(heading, truncate(message, maxMessage), "")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
