package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

// ErrNoActiveSession is returned by Stop when nothing is running.
var ErrNoActiveSession = errors.New("no active dictation session")

// Broadcaster pushes live session events to connected dashboard clients.
// *websocket.Server is the production implementation.
type Broadcaster interface {
	BroadcastEvent(messageType string, data map[string]any)
}

// Status is a point-in-time snapshot of the dictation lifecycle.
type Status struct {
	State     State      `json:"state"`
	Display   string     `json:"display_text"`
	Committed string     `json:"committed_text"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Manager owns the single dictation session of the daemon and fans its
// callbacks out to the dashboard hub and the metrics registry. Exactly one
// dictation can run at a time; that is enforced by the session itself, since
// the manager drives one instance.
type Manager struct {
	session *Session
	hub     Broadcaster
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu        sync.Mutex
	display   string
	startedAt time.Time
}

// NewManager builds the session from the application configuration and wires
// its callbacks.
func NewManager(cfg *config.Config, provider TokenProvider, capture Capture, hub Broadcaster, m *metrics.Metrics, log *logger.Logger) *Manager {
	mgr := &Manager{
		hub:     hub,
		metrics: m,
		logger:  log.Named("session-manager"),
	}

	sessionCfg := Config{
		StreamURL:      StreamURL(cfg.Transcription.BaseURL, cfg.Transcription.WebSocketPath),
		Model:          cfg.Transcription.Model,
		Language:       cfg.Transcription.Language,
		ConnectTimeout: time.Duration(cfg.Transcription.ConnectTimeoutSecs) * time.Second,
		DrainGrace:     time.Duration(cfg.Transcription.DrainGraceMs) * time.Millisecond,
	}

	mgr.session = New(sessionCfg, provider, capture, Callbacks{
		OnTranscript:  mgr.onTranscript,
		OnError:       mgr.onError,
		OnStateChange: mgr.onStateChange,
	}, m, log)

	return mgr
}

// Start begins a dictation session. It fails with ErrAlreadyActive when one
// is already running, and with the connect error taxonomy otherwise.
func (m *Manager) Start(ctx context.Context) error {
	err := m.session.Connect(ctx)
	if err != nil {
		if !errors.Is(err, ErrAlreadyActive) && m.metrics != nil {
			m.metrics.SessionsFailed.WithLabelValues(failureReason(err)).Inc()
		}
		return err
	}

	if m.metrics != nil {
		m.metrics.SessionsStarted.Inc()
	}
	return nil
}

// Stop ends the running dictation and returns the committed transcript. When
// nothing is running it returns ErrNoActiveSession. A Stop that lands while
// the session is still connecting waits for the connect to resolve, then
// tears it down.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	switch m.session.State() {
	case StateConnecting, StateListening, StateProcessing:
	default:
		return "", ErrNoActiveSession
	}

	return m.session.Disconnect(ctx), nil
}

// Status reports the current lifecycle state and transcript views.
func (m *Manager) Status() Status {
	m.mu.Lock()
	display := m.display
	startedAt := m.startedAt
	m.mu.Unlock()

	status := Status{
		State:     m.session.State(),
		Display:   display,
		Committed: m.session.Committed(),
	}
	if !startedAt.IsZero() {
		status.StartedAt = &startedAt
	}
	return status
}

func (m *Manager) onTranscript(text string, final bool) {
	m.mu.Lock()
	m.display = text
	m.mu.Unlock()

	messageType := websocket.MessageTypeTranscriptPartial
	if final {
		messageType = websocket.MessageTypeTranscriptCommitted
	}
	if m.hub != nil {
		m.hub.BroadcastEvent(messageType, map[string]any{"text": text})
	}
}

func (m *Manager) onError(err error) {
	m.logger.Warn("Session error", logger.Error(err))
	if m.hub != nil {
		m.hub.BroadcastEvent(websocket.MessageTypeSessionError, map[string]any{"error": err.Error()})
	}
}

func (m *Manager) onStateChange(state State) {
	now := time.Now()

	m.mu.Lock()
	switch state {
	case StateListening:
		m.startedAt = now
	case StateConnecting:
		m.display = ""
	case StateIdle, StateError:
		if !m.startedAt.IsZero() && m.metrics != nil {
			m.metrics.SessionDuration.Observe(now.Sub(m.startedAt).Seconds())
		}
		m.startedAt = time.Time{}
	}
	m.mu.Unlock()

	if m.metrics != nil {
		switch state {
		case StateIdle, StateError:
			m.metrics.SessionActive.Set(0)
		default:
			m.metrics.SessionActive.Set(1)
		}
	}

	if m.hub != nil {
		m.hub.BroadcastEvent(websocket.MessageTypeSessionState, map[string]any{"state": string(state)})
	}
}

// failureReason maps a connect error onto the metrics label set.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthFailed):
		return metrics.ReasonAuth
	case errors.Is(err, ErrAcquisitionFailed):
		return metrics.ReasonAcquisition
	case errors.Is(err, ErrConnectFailed):
		return metrics.ReasonConnect
	default:
		return metrics.ReasonOther
	}
}
