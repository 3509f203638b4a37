package prompt

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"text/template"

	"github.com/voxnote/voxnote/pkg/logger"
)

// DefaultSummaryPrompt is used when no template file is configured.
const DefaultSummaryPrompt = "You write one-line summaries of personal voice notes. " +
	"Respond with a single short sentence capturing what the note is about. " +
	"Do not add prefixes, labels, or commentary."

// NoteData is the context available to a summary prompt template. The
// transcript itself travels as the user message, so the template only sees
// metadata.
type NoteData struct {
	CreatedAt string
	WordCount int
}

// Engine loads, caches, and renders prompt templates.
type Engine struct {
	templateCache map[string]*template.Template
	cacheMutex    sync.RWMutex
	logger        *logger.Logger
}

// NewEngine creates an engine with an empty cache.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		templateCache: make(map[string]*template.Template),
		logger:        log.Named("prompt-engine"),
	}
}

// Render renders the template at path with the given note data. An empty
// path renders the built-in default prompt.
func (e *Engine) Render(path string, data NoteData) (string, error) {
	if path == "" {
		return DefaultSummaryPrompt, nil
	}

	tmpl, err := e.getTemplate(path)
	if err != nil {
		return "", fmt.Errorf("failed to get template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// getTemplate retrieves a template from cache or loads it from file.
func (e *Engine) getTemplate(path string) (*template.Template, error) {
	e.cacheMutex.RLock()
	if tmpl, exists := e.templateCache[path]; exists {
		e.cacheMutex.RUnlock()
		return tmpl, nil
	}
	e.cacheMutex.RUnlock()

	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	// Another goroutine may have loaded it while we waited for the lock.
	if tmpl, exists := e.templateCache[path]; exists {
		return tmpl, nil
	}

	tmpl, err := e.loadTemplate(path)
	if err != nil {
		return nil, err
	}

	e.templateCache[path] = tmpl
	e.logger.Debug("Template loaded and cached", logger.String("path", path))
	return tmpl, nil
}

// loadTemplate reads and parses a template file.
func (e *Engine) loadTemplate(path string) (*template.Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file '%s': %w", path, err)
	}

	tmpl, err := template.New(path).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template file '%s': %w", path, err)
	}
	return tmpl, nil
}

// Reload forces the template at path to be reloaded from disk.
func (e *Engine) Reload(path string) error {
	e.cacheMutex.Lock()
	defer e.cacheMutex.Unlock()

	tmpl, err := e.loadTemplate(path)
	if err != nil {
		return err
	}
	e.templateCache[path] = tmpl
	e.logger.Info("Template reloaded", logger.String("path", path))
	return nil
}
