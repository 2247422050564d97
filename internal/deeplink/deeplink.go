// Package deeplink resolves the query parameters a notification tap carries
// into a view target, and manages the brief highlight shown on arrival.
package deeplink

import (
	"net/url"
	"sync"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// DefaultHighlightDuration is how long a deep-linked element stays
// highlighted before the mark clears.
const DefaultHighlightDuration = 2500 * time.Millisecond

// Target identifies what the app should scroll to and highlight on load.
// Exactly one field is set.
type Target struct {
	// Day is a meal-plan day label ("?dia=Lunes").
	Day string
	// View is a named section ("?view=compra", "?view=presupuesto").
	View string
}

// Parse extracts a target from an application URL. Unknown or invalid
// parameters yield no target: an unrecognized day must not highlight
// anything.
func Parse(rawURL string) (Target, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, false
	}
	q := u.Query()

	if day := q.Get("dia"); day != "" {
		if !model.ValidDay(day) {
			return Target{}, false
		}
		return Target{Day: day}, true
	}
	if view := q.Get("view"); view != "" {
		return Target{View: view}, true
	}
	return Target{}, false
}

// Highlighter tracks the currently highlighted element and clears it after
// a bounded duration. Re-highlighting restarts the timer.
type Highlighter struct {
	duration time.Duration

	mu      sync.Mutex
	current string
	timer   *time.Timer
}

// NewHighlighter creates a highlighter; d <= 0 uses the default duration.
func NewHighlighter(d time.Duration) *Highlighter {
	if d <= 0 {
		d = DefaultHighlightDuration
	}
	return &Highlighter{duration: d}
}

// Highlight marks id and schedules the clear.
func (h *Highlighter) Highlight(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = id
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.duration, func() {
		h.mu.Lock()
		if h.current == id {
			h.current = ""
		}
		h.mu.Unlock()
	})
}

// Current returns the highlighted id, or "".
func (h *Highlighter) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Stop cancels any pending clear and drops the highlight.
func (h *Highlighter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.current = ""
}
