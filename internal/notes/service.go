package notes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

var (
	// ErrNotFound is returned when a note ID does not exist.
	ErrNotFound = errors.New("note not found")

	// ErrEmptyNote is returned when there is no content to save.
	ErrEmptyNote = errors.New("note content is empty")

	// ErrSearchDisabled is returned when no embedding backend is configured.
	ErrSearchDisabled = errors.New("semantic search is not enabled")
)

const (
	queryCacheTTL  = 5 * time.Minute
	queryCacheSize = 128
)

// Store is the persistence surface the notes service needs. The sqlite
// package provides the production implementation.
type Store interface {
	Insert(note *Note) error
	GetByID(id string) (*Note, error)
	List(limit, offset int) ([]*Note, error)
	Delete(id string) (bool, error)
	Count() (int, error)
	GetUnsummarized(batchSize int) ([]*Note, error)
	GetEmbedded(model string) ([]*Note, error)
	UpdateSummary(id, summary string) error
	MarkSummarized(id string) error
	UpdateEmbedding(id string, vec []float32, model string) error
}

// Broadcaster pushes note events to connected dashboard clients.
type Broadcaster interface {
	BroadcastEvent(messageType string, data map[string]any)
}

// Service owns the note lifecycle: persisting finished dictations, listing
// and deleting them, and ranking them against a search query by embedding
// similarity. Summaries and embeddings themselves are filled in later by the
// enricher, so saving never waits on an AI call.
type Service struct {
	store    Store
	embedder ai.Embedder
	cfg      *config.AIConfig
	hub      Broadcaster
	metrics  *metrics.Metrics
	logger   *logger.Logger
	queries  *queryCache
}

// NewService creates the notes service. The embedder may be nil, which
// disables search but leaves the rest of the note lifecycle working.
func NewService(store Store, embedder ai.Embedder, cfg *config.AIConfig, hub Broadcaster, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		hub:      hub,
		metrics:  m,
		logger:   log.Named("notes"),
		queries:  newQueryCache(queryCacheTTL, queryCacheSize),
	}
}

// Save persists a transcript as a new note and announces it on the hub.
func (s *Service) Save(ctx context.Context, content string) (*Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyNote
	}

	note := &Note{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Content:   content,
	}

	if err := s.store.Insert(note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	if s.metrics != nil {
		s.metrics.NotesSaved.Inc()
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(websocket.MessageTypeNoteSaved, map[string]any{
			"id":         note.ID,
			"created_at": note.CreatedAt,
			"word_count": note.WordCount(),
		})
	}

	s.logger.Info("Note saved",
		logger.String("id", note.ID),
		logger.Int("words", note.WordCount()))

	return note, nil
}

// List returns a page of notes, newest first, plus the total count.
func (s *Service) List(limit, offset int) ([]*Note, int, error) {
	list, err := s.store.List(limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}

	total, err := s.store.Count()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	return list, total, nil
}

// Get returns a single note by ID.
func (s *Service) Get(id string) (*Note, error) {
	note, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	if note == nil {
		return nil, ErrNotFound
	}
	return note, nil
}

// Delete removes a note by ID.
func (s *Service) Delete(id string) error {
	deleted, err := s.store.Delete(id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.logger.Info("Note deleted", logger.String("id", id))
	return nil
}

// SearchEnabled reports whether semantic search can serve queries.
func (s *Service) SearchEnabled() bool {
	return s.embedder != nil && s.cfg != nil && s.cfg.EmbeddingsEnabled
}

// Search embeds the query and ranks embedded notes by cosine similarity,
// returning up to limit results in descending score order. Notes whose
// embeddings came from a different model are never candidates.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if !s.SearchEnabled() {
		return nil, ErrSearchDisabled
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	queryVec, ok := s.queries.get(query)
	if !ok {
		vec, err := s.embedder.Embed(ctx, query, s.cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		s.queries.set(query, vec)
		queryVec = vec
	}

	candidates, err := s.store.GetEmbedded(s.cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded notes: %w", err)
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, note := range candidates {
		if len(note.Embedding) != len(queryVec) {
			continue
		}
		results = append(results, SearchResult{
			Note:  note,
			Score: cosineSimilarity(queryVec, note.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if s.metrics != nil {
		s.metrics.NoteSearches.Inc()
	}

	s.logger.Debug("Search served",
		logger.Int("candidates", len(candidates)),
		logger.Int("results", len(results)))

	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero-magnitude vectors score 0 rather than dividing by zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
