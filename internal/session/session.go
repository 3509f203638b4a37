package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/metrics"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Config carries the per-session parameters derived from the application
// configuration.
type Config struct {
	StreamURL      string        // full ws(s) endpoint for the transcription socket
	Model          string        // vendor model selector
	Language       string        // language hint
	ConnectTimeout time.Duration // budget for token acquisition plus handshake
	DrainGrace     time.Duration // wait for trailing segments after end-of-stream
}

// Callbacks are the consumer notification channels. All three are optional;
// nil entries are skipped. Invocations are serialized, and each channel is
// delivered in order. Handlers must return promptly and must not call back
// into the session.
type Callbacks struct {
	OnTranscript  func(text string, final bool)
	OnError       func(err error)
	OnStateChange func(state State)
}

// Capture owns the microphone for one dictation. *audio.CaptureSession is
// the production implementation.
type Capture interface {
	Start(onFrame audio.FrameFunc) error
	Stop() error
}

// Session is the dictation state machine. It exclusively owns the
// microphone, the transcription socket, and the stream credential; every
// acquisition and release runs through Connect, Disconnect, or the
// unexpected-close path, all of which share one idempotent cleanup.
type Session struct {
	cfg       Config
	provider  TokenProvider
	capture   Capture
	callbacks Callbacks
	metrics   *metrics.Metrics // optional; nil disables instrumentation
	logger    *logger.Logger

	// opMu serializes Connect and Disconnect end to end. A Disconnect that
	// arrives while a Connect is in flight waits for it to resolve rather
	// than aborting the handshake.
	opMu sync.Mutex

	mu         sync.Mutex
	state      State
	conn       *StreamConnection
	credential *Credential
	cleaned    bool

	aggregator *Aggregator

	// cbMu serializes consumer callbacks across the event loop and the
	// lifecycle calls.
	cbMu sync.Mutex
}

// New creates an idle session. The capture instance is reused across
// connects; a session never shares it with anything else.
func New(cfg Config, provider TokenProvider, capture Capture, callbacks Callbacks, m *metrics.Metrics, log *logger.Logger) *Session {
	return &Session{
		cfg:        cfg,
		provider:   provider,
		capture:    capture,
		callbacks:  callbacks,
		metrics:    m,
		logger:     log.Named("session"),
		state:      StateIdle,
		aggregator: NewAggregator(),
		cleaned:    true,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Committed returns the transcript accumulated so far in the current or most
// recent session.
func (s *Session) Committed() string {
	return s.aggregator.Committed()
}

// Connect acquires a credential, the microphone, and the socket, in that
// order, and starts streaming. It returns ErrAlreadyActive unless the
// session is Idle or Error. Any acquisition failure releases whatever was
// already acquired, lands the session in Error, and is reported both on the
// returned error and through the callbacks.
func (s *Session) Connect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateError {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrAlreadyActive, state)
	}
	s.state = StateConnecting
	s.aggregator.Reset()
	s.cleaned = false
	s.mu.Unlock()
	s.emitState(StateConnecting)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	// Credential first, so a dead auth path fails before the microphone is
	// touched.
	cred, err := s.provider.Acquire(ctx)
	if err != nil {
		if !errors.Is(err, ErrAuthFailed) {
			err = fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return s.failConnect(err)
	}
	s.mu.Lock()
	s.credential = cred
	s.mu.Unlock()

	if err := s.capture.Start(s.handleFrame); err != nil {
		return s.failConnect(fmt.Errorf("%w: %v", ErrAcquisitionFailed, err))
	}

	conn, err := DialStream(ctx, DialOptions{
		URL:      s.cfg.StreamURL,
		Token:    cred.Token,
		Model:    s.cfg.Model,
		Language: s.cfg.Language,
		Timeout:  s.cfg.ConnectTimeout,
	}, s.logger)
	if err != nil {
		if !errors.Is(err, ErrConnectFailed) {
			err = fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		return s.failConnect(err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateListening
	s.mu.Unlock()
	s.emitState(StateListening)

	go s.readEvents(conn)

	s.logger.Info("Dictation session listening",
		logger.String("model", s.cfg.Model),
		logger.String("language", s.cfg.Language))
	return nil
}

// failConnect tears down whatever Connect had acquired so far and lands the
// session in Error. The error is surfaced on the callbacks as well as
// returned, and nothing is retried.
func (s *Session) failConnect(err error) error {
	s.cleanupOnce()

	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()

	s.logger.Error("Dictation connect failed", logger.Error(err))
	s.emitError(err)
	s.emitState(StateError)
	return err
}

// Disconnect ends the session: it signals end-of-stream, waits out the drain
// grace so trailing segments can still land, cleans up, and returns the
// committed transcript. Calling it when nothing is listening is a safe no-op
// that returns whatever was last committed. A Disconnect issued while a
// Connect is still in flight waits for the connect to resolve first.
func (s *Session) Disconnect(ctx context.Context) string {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateListening {
		text := s.aggregator.Committed()
		s.mu.Unlock()
		return text
	}
	s.state = StateProcessing
	conn := s.conn
	s.mu.Unlock()
	s.emitState(StateProcessing)

	if err := conn.SignalEndOfStream(); err != nil {
		s.logger.Warn("Failed to signal end of stream", logger.Error(err))
	}

	// Fixed drain window for trailing partial/committed segments. This is a
	// timeout, not a wait: it elapses even when nothing further arrives.
	select {
	case <-time.After(s.cfg.DrainGrace):
	case <-ctx.Done():
	}

	s.cleanupOnce()

	s.mu.Lock()
	s.state = StateIdle
	text := s.aggregator.Committed()
	s.mu.Unlock()
	s.emitState(StateIdle)

	s.logger.Info("Dictation session ended", logger.Int("transcript_chars", len(text)))
	return text
}

// handleFrame runs on the capture clock. Frames are only forwarded while the
// session is listening; anything else is dropped on the floor.
func (s *Session) handleFrame(samples []float32) {
	s.mu.Lock()
	conn := s.conn
	listening := s.state == StateListening
	s.mu.Unlock()

	if !listening || conn == nil {
		return
	}

	if err := conn.SendAudio(audio.EncodeBase64(audio.EncodePCM16(samples))); err != nil {
		// The read pump surfaces transport failures; a lost frame here is
		// only worth a debug line.
		s.logger.Debug("Dropping audio frame", logger.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.FramesSent.Inc()
	}
}

// readEvents consumes the connection's event stream until it closes. Running
// on a single goroutine keeps transcript callbacks in arrival order.
func (s *Session) readEvents(conn *StreamConnection) {
	for event := range conn.Events() {
		switch {
		case event.Closed:
			s.handleClose(event.Err)
		case event.Err != nil:
			// Protocol-level error frame. Surfaced, but the stream stays
			// up and the session state is untouched; ending the session
			// remains the consumer's decision.
			s.logger.Warn("Transcription service reported an error", logger.Error(event.Err))
			s.emitError(event.Err)
		case event.Segment != nil:
			s.handleSegment(*event.Segment)
		}
	}
}

// handleSegment folds a transcript segment into the aggregator and notifies
// the consumer. Segments are accepted while listening and during the drain
// window; anything arriving after cleanup is dropped.
func (s *Session) handleSegment(seg Segment) {
	s.mu.Lock()
	if s.state != StateListening && s.state != StateProcessing {
		s.mu.Unlock()
		return
	}
	display := s.aggregator.Apply(seg)
	s.mu.Unlock()

	if s.metrics != nil {
		kind := metrics.KindPartial
		if seg.Final {
			kind = metrics.KindCommitted
		}
		s.metrics.SegmentsReceived.WithLabelValues(kind).Inc()
	}

	s.emitTranscript(display, seg.Final)
}

// handleClose reacts to the read pump exiting. While listening this is an
// unexpected close: clean up and land in Idle. In any other state the close
// is part of a deliberate shutdown and needs no action.
func (s *Session) handleClose(err error) {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cleanupOnce()

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	closeErr := ErrUnexpectedClose
	if err != nil {
		closeErr = fmt.Errorf("%w: %v", ErrUnexpectedClose, err)
	}
	s.logger.Warn("Transcription socket closed unexpectedly", logger.Error(err))
	s.emitError(closeErr)
	s.emitState(StateIdle)
}

// cleanupOnce releases session resources exactly once per connect, in a
// fixed order: microphone first so no more frames chase a dying socket, then
// the socket, then the credential. Both the Disconnect path and the
// unexpected-close path route through here, so reaching it twice is safe.
func (s *Session) cleanupOnce() {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return
	}
	s.cleaned = true
	conn := s.conn
	s.conn = nil
	s.credential = nil
	s.mu.Unlock()

	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("Error stopping audio capture", logger.Error(err))
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn("Error closing transcription socket", logger.Error(err))
		}
	}
}

func (s *Session) emitState(state State) {
	if s.callbacks.OnStateChange == nil {
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks.OnStateChange(state)
}

func (s *Session) emitError(err error) {
	if s.callbacks.OnError == nil {
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks.OnError(err)
}

func (s *Session) emitTranscript(text string, final bool) {
	if s.callbacks.OnTranscript == nil {
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.callbacks.OnTranscript(text, final)
}
