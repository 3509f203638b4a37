package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Router wires the API handlers into the HTTP route tree.
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(dictation DictationManager, notesService NotesService, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler: NewHandler(dictation, notesService, cfg, log, wsServer),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes builds the handler tree served by the HTTP server.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)

		r.Route("/dictation", func(r chi.Router) {
			r.Post("/start", rt.handler.StartDictation)
			r.Post("/stop", rt.handler.StopDictation)
			r.Get("/status", rt.handler.GetDictationStatus)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", rt.handler.ListNotes)
			r.Post("/", rt.handler.CreateNote)
			r.Get("/search", rt.handler.SearchNotes)
			r.Get("/{id}", rt.handler.GetNote)
			r.Delete("/{id}", rt.handler.DeleteNote)
		})

		r.Get("/ws", rt.handler.HandleWebSocket)
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// The dashboard is served for any path the API does not claim.
	if rt.config.Server.StaticFilesDir != "" {
		rt.logger.Info("Serving dashboard files",
			logger.String("dir", rt.config.Server.StaticFilesDir))
		static := NewStaticFileHandler(rt.config.Server.StaticFilesDir, rt.logger)
		r.NotFound(static.ServeHTTP)
	}

	return r
}
