package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/ai/gemini"
	"github.com/voxnote/voxnote/internal/ai/openai"
	"github.com/voxnote/voxnote/internal/api"
	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/internal/prompt"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/internal/storage/sqlite"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load .env if present, so keys never have to live in the config file
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, falling back to environment variables")
	}

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting voxnote daemon",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Register Prometheus instruments
	m := metrics.New()

	// Open SQLite storage
	if err := os.MkdirAll(cfg.Storage.SQLitePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLitePath))
		os.Exit(1)
	}

	dbPath := filepath.Join(cfg.Storage.SQLitePath, "voxnote.db")
	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Using SQLite storage", logger.String("path", dbPath))

	notesStorage, err := sqlite.NewNotesStorage(db, log)
	if err != nil {
		log.Error("Failed to create notes storage", logger.Error(err))
		os.Exit(1)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()
	metrics.RegisterClientGauge(wsServer.ClientCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the AI provider (if enabled)
	var aiProvider ai.Provider
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.OpenAIAPIKey != "" {
			aiProvider = openai.NewClient(
				cfg.AI.OpenAIAPIKey,
				cfg.AI.OpenAIBaseURL,
				time.Duration(cfg.AI.TimeoutSeconds)*time.Second,
				log,
			)
			log.Info("AI provider created", logger.String("provider", "openai"))
		} else {
			log.Warn("OpenAI provider selected but no API key found - summaries and search disabled")
		}
	case "gemini":
		if cfg.AI.GeminiAPIKey != "" {
			geminiClient, err := gemini.NewClient(ctx, cfg.AI.GeminiAPIKey, log)
			if err != nil {
				// Keep running without AI rather than failing the daemon
				log.Error("Failed to create Gemini client", logger.Error(err))
			} else {
				aiProvider = geminiClient
				log.Info("AI provider created", logger.String("provider", "gemini"))
			}
		} else {
			log.Warn("Gemini provider selected but no API key found - summaries and search disabled")
		}
	default:
		log.Info("AI provider disabled - notes are kept without summaries or search")
	}

	// Create prompt engine and notes service
	promptEngine := prompt.NewEngine(log)
	notesService := notes.NewService(notesStorage, aiProvider, &cfg.AI, wsServer, m, log)

	// Create and start the background enricher
	enricher := notes.NewEnricher(ctx, notesStorage, aiProvider, promptEngine, wsServer, &cfg.AI, log)
	if err := enricher.Start(); err != nil {
		log.Error("Failed to start note enricher", logger.Error(err))
		os.Exit(1)
	}

	// Create audio capture
	device, err := audio.NewDevice(cfg, log)
	if err != nil {
		log.Error("Failed to create audio device", logger.Error(err))
		os.Exit(1)
	}
	capture := audio.NewCaptureSession(device, log)

	// Create the dictation session manager
	tokenProvider := session.NewTokenProvider(cfg, log)
	sessionManager := session.NewManager(cfg, tokenProvider, capture, wsServer, m, log)

	// Let freshly connected dashboard clients pull a state snapshot
	wsHandler := session.NewWebSocketHandler(sessionManager, log)
	wsServer.SetMessageHandler(wsHandler)

	// Create API router
	router := api.NewRouter(sessionManager, notesService, cfg, log, wsServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down daemon...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// End an in-flight dictation first so the transcript is not lost.
	transcript, err := sessionManager.Stop(shutdownCtx)
	switch {
	case err == nil:
		log.Info("Stopped active dictation session")
		if _, saveErr := notesService.Save(shutdownCtx, transcript); saveErr != nil && !errors.Is(saveErr, notes.ErrEmptyNote) {
			log.Error("Failed to save in-flight dictation", logger.Error(saveErr))
		}
	case errors.Is(err, session.ErrNoActiveSession):
		// Nothing was running.
	default:
		log.Error("Error stopping dictation session", logger.Error(err))
	}

	log.Info("Stopping note enricher...")
	if err := enricher.Stop(); err != nil {
		log.Error("Error stopping note enricher", logger.Error(err))
	}
	log.Info("Note enricher stopped.")

	// Cancel the main context
	cancel()

	// Shutdown the HTTP server
	log.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Daemon fully stopped")
}
