package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

// DictationManager drives the daemon's single dictation session.
// *session.Manager is the production implementation.
type DictationManager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	Status() session.Status
}

// NotesService persists finished dictations and serves queries over them.
// *notes.Service is the production implementation.
type NotesService interface {
	Save(ctx context.Context, content string) (*notes.Note, error)
	List(limit, offset int) ([]*notes.Note, int, error)
	Get(id string) (*notes.Note, error)
	Delete(id string) error
	Search(ctx context.Context, query string, limit int) ([]notes.SearchResult, error)
	SearchEnabled() bool
}

// Handler contains the API handlers
type Handler struct {
	dictation DictationManager
	notes     NotesService
	config    *config.Config
	logger    *logger.Logger
	wsServer  *websocket.Server
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(dictation DictationManager, notesService NotesService, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		dictation: dictation,
		notes:     notesService,
		config:    config,
		logger:    logger.Named("api-handler"),
		wsServer:  wsServer,
		startedAt: time.Now(),
	}
}

// GetHealth reports daemon liveness and the dictation state
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.dictation.Status()

	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"session_state":  status.State,
	}
	if h.wsServer != nil {
		response["clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Create a sanitized config with only public values - never the keys
	publicConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"backend":           h.config.Audio.Backend,
			"sample_rate":       h.config.Audio.SampleRate,
			"channels":          h.config.Audio.Channels,
			"frames_per_buffer": h.config.Audio.FramesPerBuffer,
		},
		"transcription": map[string]interface{}{
			"model":            h.config.Transcription.Model,
			"language":         h.config.Transcription.Language,
			"proxy_configured": h.config.Transcription.ProxyURL != "",
		},
		"ai": map[string]interface{}{
			"provider":           h.config.AI.Provider,
			"summaries_enabled":  h.config.AI.SummariesEnabled,
			"embeddings_enabled": h.config.AI.EmbeddingsEnabled,
			"search_enabled":     h.notes.SearchEnabled(),
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("WebSocket connection request received")

	// Handle the WebSocket connection
	h.wsServer.HandleConnection(w, r)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
