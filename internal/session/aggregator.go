package session

import (
	"strings"
	"sync"
)

// Segment is one transcript fragment from the service. Final segments are
// finished recognition of a stretch of audio; non-final segments are the
// service's current best guess and will be superseded.
type Segment struct {
	Text  string
	Final bool
	Words []Word // per-word timing, present on some committed segments
}

// Word is one recognized word with its timing inside the stream.
type Word struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Aggregator reconciles the stream of partial and committed segments into a
// single transcript. Committed text only ever grows within a session; the
// display view appends the latest partial on top without persisting it.
type Aggregator struct {
	mu        sync.Mutex
	committed string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply folds one segment in and returns the display text: the committed
// transcript alone after a final segment, or committed plus the pending
// partial after a non-final one. Empty segments leave the transcript as is.
func (a *Aggregator) Apply(seg Segment) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(seg.Text)

	if seg.Final {
		if text != "" {
			if a.committed == "" {
				a.committed = text
			} else {
				a.committed += " " + text
			}
		}
		return a.committed
	}

	if text == "" {
		return a.committed
	}
	if a.committed == "" {
		return text
	}
	return a.committed + " " + text
}

// Committed returns the accumulated final transcript.
func (a *Aggregator) Committed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

// Reset clears the committed transcript. It is called only when a brand-new
// session starts; nothing else ever shortens the transcript.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = ""
}
