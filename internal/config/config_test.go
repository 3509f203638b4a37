package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// minimalConfig is the smallest config that passes Validate.
func minimalConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8787
	cfg.Transcription.Model = "scribe-rt-1"
	return cfg
}

func TestValidateFillsDefaults(t *testing.T) {
	t.Setenv("VOXNOTE_STT_API_KEY", "")

	cfg := minimalConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %q/%q, want info/console", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLitePath != "data" {
		t.Errorf("storage = %q/%q, want sqlite/data", cfg.Storage.Type, cfg.Storage.SQLitePath)
	}
	if cfg.Audio.Backend != "miniaudio" {
		t.Errorf("audio backend = %q, want miniaudio", cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.FramesPerBuffer != 4096 {
		t.Errorf("audio = %d/%d/%d, want 16000/1/4096",
			cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FramesPerBuffer)
	}
	if cfg.Transcription.TokenPath != "/v1/speech/realtime/tokens" {
		t.Errorf("token_path = %q", cfg.Transcription.TokenPath)
	}
	if cfg.Transcription.WebSocketPath != "/v1/speech/realtime" {
		t.Errorf("websocket_path = %q", cfg.Transcription.WebSocketPath)
	}
	if cfg.Transcription.Language != "en" {
		t.Errorf("language = %q, want en", cfg.Transcription.Language)
	}
	if cfg.Transcription.ConnectTimeoutSecs != 15 || cfg.Transcription.DrainGraceMs != 1500 {
		t.Errorf("timeouts = %d/%d, want 15/1500",
			cfg.Transcription.ConnectTimeoutSecs, cfg.Transcription.DrainGraceMs)
	}
	if cfg.AI.Provider != "none" {
		t.Errorf("ai provider = %q, want none", cfg.AI.Provider)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := minimalConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d was accepted", port)
		}
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := minimalConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "log level") {
		t.Errorf("Validate error = %v, want log level rejection", err)
	}
}

func TestValidateRejectsBadAudioBackend(t *testing.T) {
	cfg := minimalConfig()
	cfg.Audio.Backend = "pulseaudio"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "audio backend") {
		t.Errorf("Validate error = %v, want backend rejection", err)
	}
}

func TestValidateRejectsStereoCapture(t *testing.T) {
	cfg := minimalConfig()
	cfg.Audio.Channels = 2
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "channel") {
		t.Errorf("Validate error = %v, want channel rejection", err)
	}
}

func TestValidateFFmpegBackend(t *testing.T) {
	t.Setenv("VOXNOTE_STT_API_KEY", "")

	cfg := minimalConfig()
	cfg.Audio.Backend = "ffmpeg"
	if err := cfg.Validate(); err == nil {
		t.Error("ffmpeg backend without an input was accepted")
	}

	cfg = minimalConfig()
	cfg.Audio.Backend = "ffmpeg"
	cfg.Audio.FFmpegInput = "default"
	cfg.Audio.FFmpegFormat = "pulse"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Audio.FFmpegPath != "ffmpeg" {
		t.Errorf("ffmpeg_path = %q, want the PATH default", cfg.Audio.FFmpegPath)
	}
}

func TestValidateRequiresModel(t *testing.T) {
	t.Setenv("VOXNOTE_STT_API_KEY", "")

	cfg := minimalConfig()
	cfg.Transcription.Model = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "model") {
		t.Errorf("Validate error = %v, want model rejection", err)
	}
}

func TestValidateRequiresBaseURLWithCredentials(t *testing.T) {
	cfg := minimalConfig()
	cfg.Transcription.APIKey = "sk-test"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("Validate error = %v, want base_url rejection", err)
	}

	cfg.Transcription.BaseURL = "https://api.vendor.example"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed with base_url set: %v", err)
	}
}

func TestValidateAIModelDefaults(t *testing.T) {
	t.Setenv("VOXNOTE_STT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")

	cfg := minimalConfig()
	cfg.AI.Provider = "openai"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.AI.SummaryModel != "gpt-4o-mini" || cfg.AI.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("openai models = %q/%q", cfg.AI.SummaryModel, cfg.AI.EmbeddingModel)
	}

	cfg = minimalConfig()
	cfg.AI.Provider = "gemini"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.AI.SummaryModel != "gemini-2.0-flash" || cfg.AI.EmbeddingModel != "gemini-embedding-001" {
		t.Errorf("gemini models = %q/%q", cfg.AI.SummaryModel, cfg.AI.EmbeddingModel)
	}
}

func TestValidateRejectsUnknownAIProvider(t *testing.T) {
	t.Setenv("VOXNOTE_STT_API_KEY", "")

	cfg := minimalConfig()
	cfg.AI.Provider = "anthropic"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ai provider") {
		t.Errorf("Validate error = %v, want provider rejection", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9999
host = "0.0.0.0"

[transcription]
model = "scribe-rt-1"
base_url = "https://api.vendor.example"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server = %d/%q", cfg.Server.Port, cfg.Server.Host)
	}
	if cfg.Transcription.BaseURL != "https://api.vendor.example" {
		t.Errorf("base_url = %q", cfg.Transcription.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestLoadWithFallbackPrefersGivenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	content := `
[server]
port = 4242

[transcription]
model = "scribe-rt-1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback failed: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("port = %d, want 4242", cfg.Server.Port)
	}
}

func TestLoadWithFallbackAllMissing(t *testing.T) {
	if _, err := LoadWithFallback(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadWithFallback succeeded with no config anywhere")
	}
}
