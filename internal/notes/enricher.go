package notes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/prompt"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Enricher is the background worker that fills in what the save path skips:
// it periodically sweeps for notes without a summary, asks the AI provider
// for one, and embeds the content so the note becomes searchable. Both steps
// are best-effort; a note that fails to summarize is still marked processed
// so the sweep does not retry it forever.
type Enricher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	store    Store
	provider ai.Provider
	engine   *prompt.Engine
	hub      Broadcaster
	cfg      *config.AIConfig
	logger   *logger.Logger
	interval time.Duration
	wg       sync.WaitGroup
}

// NewEnricher creates the enricher. The provider may be nil when no AI
// backend is configured; Start then refuses to spin up the loop.
func NewEnricher(ctx context.Context, store Store, provider ai.Provider, engine *prompt.Engine, hub Broadcaster, cfg *config.AIConfig, log *logger.Logger) *Enricher {
	workerCtx, workerCancel := context.WithCancel(ctx)
	return &Enricher{
		ctx:      workerCtx,
		cancel:   workerCancel,
		store:    store,
		provider: provider,
		engine:   engine,
		hub:      hub,
		cfg:      cfg,
		logger:   log.Named("enricher"),
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
	}
}

// Start starts the enrichment loop.
func (e *Enricher) Start() error {
	if e.provider == nil || (!e.cfg.SummariesEnabled && !e.cfg.EmbeddingsEnabled) {
		e.logger.Info("Note enrichment is disabled, not starting")
		return nil
	}

	e.logger.Info("Starting enrichment loop",
		logger.Int("interval_seconds", e.cfg.IntervalSeconds),
		logger.Int("batch_size", e.cfg.BatchSize))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.ctx.Done():
				e.logger.Info("Enrichment loop stopped due to context cancellation")
				return
			case <-ticker.C:
				if err := e.processNextBatch(); err != nil {
					e.logger.Error("Error processing batch", logger.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop stops the enrichment loop and waits for the in-flight batch.
func (e *Enricher) Stop() error {
	e.logger.Info("Stopping enrichment loop")
	e.cancel()
	e.wg.Wait()
	return nil
}

// processNextBatch enriches the next batch of unsummarized notes.
func (e *Enricher) processNextBatch() error {
	records, err := e.store.GetUnsummarized(e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get unsummarized notes: %w", err)
	}

	if len(records) == 0 {
		e.logger.Debug("No unsummarized notes found")
		return nil
	}

	e.logger.Debug("Enriching batch of notes", logger.Int("count", len(records)))

	for _, note := range records {
		select {
		case <-e.ctx.Done():
			return nil
		default:
		}
		e.enrichNote(note)
	}
	return nil
}

// enrichNote summarizes and embeds a single note. Each step has its own
// request timeout so one slow provider call cannot stall the whole sweep.
func (e *Enricher) enrichNote(note *Note) {
	summary := e.summarize(note)
	if summary != "" {
		if err := e.store.UpdateSummary(note.ID, summary); err != nil {
			e.logger.Error("Failed to store summary",
				logger.String("id", note.ID),
				logger.Error(err))
			return
		}
	} else {
		// Mark processed anyway so the sweep moves on.
		if err := e.store.MarkSummarized(note.ID); err != nil {
			e.logger.Error("Failed to mark note summarized",
				logger.String("id", note.ID),
				logger.Error(err))
			return
		}
	}

	embedded := e.embed(note)

	if e.hub != nil {
		e.hub.BroadcastEvent(websocket.MessageTypeNoteUpdated, map[string]any{
			"id":       note.ID,
			"summary":  summary,
			"embedded": embedded,
		})
	}
}

// summarize produces a summary for the note, or "" when summaries are
// disabled or the provider call fails.
func (e *Enricher) summarize(note *Note) string {
	if !e.cfg.SummariesEnabled {
		return ""
	}

	systemPrompt, err := e.engine.Render(e.cfg.SummaryPromptPath, prompt.NoteData{
		CreatedAt: note.CreatedAt.Format(time.RFC3339),
		WordCount: note.WordCount(),
	})
	if err != nil {
		e.logger.Error("Failed to render summary prompt", logger.Error(err))
		return ""
	}

	ctx, cancel := context.WithTimeout(e.ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	summary, err := e.provider.Summarize(ctx, systemPrompt, note.Content, ai.SummaryConfig{
		Model:       e.cfg.SummaryModel,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		e.logger.Error("Failed to summarize note",
			logger.String("id", note.ID),
			logger.Error(err))
		return ""
	}
	return summary
}

// embed stores an embedding for the note and reports whether it succeeded.
func (e *Enricher) embed(note *Note) bool {
	if !e.cfg.EmbeddingsEnabled {
		return false
	}

	ctx, cancel := context.WithTimeout(e.ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	vec, err := e.provider.Embed(ctx, note.Content, e.cfg.EmbeddingModel)
	if err != nil {
		e.logger.Error("Failed to embed note",
			logger.String("id", note.ID),
			logger.Error(err))
		return false
	}

	if err := e.store.UpdateEmbedding(note.ID, vec, e.cfg.EmbeddingModel); err != nil {
		e.logger.Error("Failed to store embedding",
			logger.String("id", note.ID),
			logger.Error(err))
		return false
	}
	return true
}
