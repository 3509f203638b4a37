package audio

import (
	"fmt"
	"sync"

	"github.com/voxnote/voxnote/pkg/logger"
)

// CaptureSession owns one microphone acquisition. It gates frame delivery so
// that once Stop returns, the frame callback is never invoked again, even if
// the backend still has a delivery in flight.
type CaptureSession struct {
	device Device
	logger *logger.Logger

	// mu is held for reading during each frame delivery and for writing by
	// Start/Stop, so Stop blocks until in-flight deliveries drain before it
	// flips the gate.
	mu      sync.RWMutex
	started bool
}

// NewCaptureSession creates a capture session around the given device.
func NewCaptureSession(device Device, log *logger.Logger) *CaptureSession {
	return &CaptureSession{
		device: device,
		logger: log.Named("capture"),
	}
}

// Start acquires the device and begins delivering frames to onFrame on the
// device clock. Starting an already running session is an error.
func (s *CaptureSession) Start(onFrame FrameFunc) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("capture session already started")
	}
	s.started = true
	s.mu.Unlock()

	err := s.device.Start(func(samples []float32) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.started {
			return
		}
		onFrame(samples)
	})
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("failed to acquire capture device: %w", err)
	}

	return nil
}

// Stop halts frame delivery and releases the device. Stopping a session that
// was never started, or stopping it twice, is a no-op.
func (s *CaptureSession) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to release capture device: %w", err)
	}
	return nil
}

// Active reports whether the session is currently delivering frames.
func (s *CaptureSession) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
