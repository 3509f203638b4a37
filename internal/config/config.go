package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // Data persistence settings
	Audio         AudioConfig         `toml:"audio"`         // Microphone capture settings
	Transcription TranscriptionConfig `toml:"transcription"` // Streaming transcription settings
	AI            AIConfig            `toml:"ai"`            // Summarization and embedding settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for streaming)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve the local dashboard from (empty = disabled)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Directory for the SQLite database file (voxnote.db is created inside it)
}

// AudioConfig contains microphone capture configuration
type AudioConfig struct {
	// Backend selects the capture implementation.
	// Allowed values:
	// - "miniaudio": in-process capture via the miniaudio bindings (default)
	// - "portaudio": in-process capture via PortAudio
	// - "ffmpeg": external ffmpeg subprocess reading from an OS capture device
	Backend string `toml:"backend"`

	SampleRate      int `toml:"sample_rate"`       // Capture sample rate in Hz (16000 for the transcription wire format)
	Channels        int `toml:"channels"`          // Number of capture channels (1 = mono)
	FramesPerBuffer int `toml:"frames_per_buffer"` // Samples per capture callback (4096 @ 16kHz = 256ms cadence)

	// FFmpeg backend settings (used when backend = "ffmpeg")
	FFmpegPath   string `toml:"ffmpeg_path"`   // Path to the ffmpeg executable
	FFmpegInput  string `toml:"ffmpeg_input"`  // Capture input (e.g., "default" for the default ALSA/Pulse source)
	FFmpegFormat string `toml:"ffmpeg_format"` // Input format passed to -f (e.g., "pulse", "alsa", "avfoundation")
}

// TranscriptionConfig contains settings for the streaming transcription service
type TranscriptionConfig struct {
	// Credential acquisition. The proxy path is preferred when configured so
	// the vendor key never has to live on this machine; the direct vendor
	// path is the fallback.
	ProxyURL       string `toml:"proxy_url"`        // Pre-authenticated relay that mints single-use stream tokens (empty = disabled)
	ProxyAuthToken string `toml:"proxy_auth_token"` // Bearer token for the relay, if it requires one
	APIKey         string `toml:"api_key"`          // Vendor API key for the direct path (falls back to VOXNOTE_STT_API_KEY)

	// Vendor endpoint configuration
	BaseURL       string `toml:"base_url"`       // Base endpoint for the transcription vendor (e.g., "https://api.vendor.example")
	TokenPath     string `toml:"token_path"`     // Path used to mint single-use stream tokens (POST)
	WebSocketPath string `toml:"websocket_path"` // Path used for the streaming socket (ws/wss derived from base_url scheme)

	Model    string `toml:"model"`    // Vendor model selector (e.g., "scribe-rt-1")
	Language string `toml:"language"` // Primary language hint (e.g., "en")

	ConnectTimeoutSecs int `toml:"connect_timeout_seconds"` // Bounded budget for token acquisition + handshake during connect
	DrainGraceMs       int `toml:"drain_grace_ms"`          // Wait after the commit signal for trailing segments before cleanup
}

// AIConfig contains summarization and embedding configuration
type AIConfig struct {
	// Provider selects the AI backend for summaries and embeddings.
	// Allowed values: "openai", "gemini", "none"
	Provider string `toml:"provider"`

	SummariesEnabled  bool `toml:"summaries_enabled"`  // Generate a short summary for each saved note
	EmbeddingsEnabled bool `toml:"embeddings_enabled"` // Generate embeddings so notes are searchable

	OpenAIAPIKey  string `toml:"openai_api_key"`  // Falls back to OPENAI_API_KEY
	OpenAIBaseURL string `toml:"openai_base_url"` // Optional override (e.g., for proxies)
	GeminiAPIKey  string `toml:"gemini_api_key"`  // Falls back to GEMINI_API_KEY

	SummaryModel   string  `toml:"summary_model"`   // Chat model used for summaries
	EmbeddingModel string  `toml:"embedding_model"` // Embedding model used for search
	Temperature    float64 `toml:"temperature"`     // Summary generation temperature
	MaxTokens      int     `toml:"max_tokens"`      // Maximum tokens in a generated summary

	SummaryPromptPath string `toml:"summary_prompt_path"` // Path to the summary prompt template file
	TimeoutSeconds    int    `toml:"timeout_seconds"`     // HTTP timeout for provider requests

	// Background summarizer loop
	IntervalSeconds int `toml:"interval_seconds"` // How often to sweep for unsummarized notes
	BatchSize       int `toml:"batch_size"`       // Maximum notes to process per sweep
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data"
	}

	if err := c.ValidateAudio(); err != nil {
		return err
	}

	if err := c.ValidateTranscription(); err != nil {
		return err
	}

	if err := c.ValidateAI(); err != nil {
		return err
	}

	return nil
}

// ValidateAudio validates the audio capture configuration
func (c *Config) ValidateAudio() error {
	if c.Audio.Backend == "" {
		c.Audio.Backend = "miniaudio"
	}
	switch c.Audio.Backend {
	case "miniaudio", "portaudio", "ffmpeg":
		// Valid backend
	default:
		return fmt.Errorf("invalid audio backend: %s (must be 'miniaudio', 'portaudio', or 'ffmpeg')", c.Audio.Backend)
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		return fmt.Errorf("invalid audio sample rate: %d", c.Audio.SampleRate)
	}

	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("invalid channel count: %d (capture is mono only)", c.Audio.Channels)
	}

	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 4096
	}
	if c.Audio.FramesPerBuffer < 256 || c.Audio.FramesPerBuffer > 65536 {
		return fmt.Errorf("invalid frames_per_buffer: %d", c.Audio.FramesPerBuffer)
	}

	if c.Audio.Backend == "ffmpeg" {
		if c.Audio.FFmpegPath == "" {
			c.Audio.FFmpegPath = "ffmpeg"
		}
		if c.Audio.FFmpegInput == "" {
			return fmt.Errorf("ffmpeg_input is required when audio backend is ffmpeg")
		}
		if c.Audio.FFmpegFormat == "" {
			return fmt.Errorf("ffmpeg_format is required when audio backend is ffmpeg")
		}
	}

	return nil
}

// ValidateTranscription validates the transcription configuration
func (c *Config) ValidateTranscription() error {
	// The vendor key may come from the environment so it never has to be
	// written into the config file.
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("VOXNOTE_STT_API_KEY")
	}

	if c.Transcription.ProxyURL == "" && c.Transcription.APIKey == "" {
		fmt.Printf("WARN: No transcription proxy or API key configured - dictation will be unavailable\n")
	}

	// The socket always connects to the vendor directly, even when tokens
	// come from the proxy, so the base URL is required for either path.
	if c.Transcription.BaseURL == "" && (c.Transcription.APIKey != "" || c.Transcription.ProxyURL != "") {
		return fmt.Errorf("transcription base_url is required when a credential path is configured")
	}

	if c.Transcription.TokenPath == "" {
		c.Transcription.TokenPath = "/v1/speech/realtime/tokens"
	}
	if c.Transcription.WebSocketPath == "" {
		c.Transcription.WebSocketPath = "/v1/speech/realtime"
	}

	if c.Transcription.Model == "" {
		return fmt.Errorf("transcription model is required")
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = "en"
	}

	if c.Transcription.ConnectTimeoutSecs == 0 {
		c.Transcription.ConnectTimeoutSecs = 15
	}
	if c.Transcription.ConnectTimeoutSecs < 0 {
		return fmt.Errorf("invalid connect_timeout_seconds: %d", c.Transcription.ConnectTimeoutSecs)
	}

	if c.Transcription.DrainGraceMs == 0 {
		c.Transcription.DrainGraceMs = 1500
	}
	if c.Transcription.DrainGraceMs < 0 {
		return fmt.Errorf("invalid drain_grace_ms: %d", c.Transcription.DrainGraceMs)
	}

	return nil
}

// ValidateAI validates the AI provider configuration
func (c *Config) ValidateAI() error {
	if c.AI.Provider == "" {
		c.AI.Provider = "none"
	}
	switch c.AI.Provider {
	case "openai", "gemini", "none":
		// Valid provider
	default:
		return fmt.Errorf("invalid ai provider: %s (must be 'openai', 'gemini', or 'none')", c.AI.Provider)
	}

	if c.AI.Provider == "none" {
		return nil
	}

	if c.AI.OpenAIAPIKey == "" {
		c.AI.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.AI.Provider == "openai" && c.AI.OpenAIAPIKey == "" {
		fmt.Printf("WARN: AI provider is openai but no API key provided - summaries and search will be disabled\n")
	}
	if c.AI.Provider == "gemini" && c.AI.GeminiAPIKey == "" {
		fmt.Printf("WARN: AI provider is gemini but no API key provided - summaries and search will be disabled\n")
	}

	if c.AI.SummaryModel == "" {
		if c.AI.Provider == "gemini" {
			c.AI.SummaryModel = "gemini-2.0-flash"
		} else {
			c.AI.SummaryModel = "gpt-4o-mini"
		}
	}
	if c.AI.EmbeddingModel == "" {
		if c.AI.Provider == "gemini" {
			c.AI.EmbeddingModel = "gemini-embedding-001"
		} else {
			c.AI.EmbeddingModel = "text-embedding-3-small"
		}
	}

	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("invalid ai temperature: %f", c.AI.Temperature)
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 256
	}

	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 30
	}
	if c.AI.IntervalSeconds == 0 {
		c.AI.IntervalSeconds = 20
	}
	if c.AI.BatchSize == 0 {
		c.AI.BatchSize = 5
	}

	return nil
}
