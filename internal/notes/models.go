package notes

import (
	"strings"
	"time"
)

// Note is one saved dictation. Content is the committed transcript exactly as
// the session returned it; Summary and Embedding are filled in later by the
// enricher and stay empty when no AI provider is configured.
type Note struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`
	Summarized bool      `json:"summarized"`

	// Embedding is the content vector used for similarity search, tagged
	// with the model that produced it. Vectors from different models are
	// not comparable, so both travel together and neither is serialized
	// to API clients.
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"-"`
}

// WordCount returns the number of whitespace-separated words in the note.
func (n *Note) WordCount() int {
	return len(strings.Fields(n.Content))
}

// SearchResult is one note ranked by similarity to a search query. Score is
// cosine similarity in [-1, 1]; results are ordered best-first.
type SearchResult struct {
	Note  *Note   `json:"note"`
	Score float64 `json:"score"`
}
