package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/pkg/logger"
)

// PortAudioDevice captures microphone audio in-process via PortAudio. The
// stream is opened with the configured frame size, so deliveries arrive
// already chunked.
type PortAudioDevice struct {
	sampleRate      int
	channels        int
	framesPerBuffer int
	logger          *logger.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	started bool
}

// NewPortAudioDevice creates a PortAudio capture device from the audio config.
func NewPortAudioDevice(cfg *config.Config, log *logger.Logger) *PortAudioDevice {
	return &PortAudioDevice{
		sampleRate:      cfg.Audio.SampleRate,
		channels:        cfg.Audio.Channels,
		framesPerBuffer: cfg.Audio.FramesPerBuffer,
		logger:          log.Named("portaudio"),
	}
}

// Start acquires the default input stream and begins delivering frames.
func (p *PortAudioDevice) Start(onFrame FrameFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("portaudio device already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(p.channels, 0, float64(p.sampleRate), p.framesPerBuffer,
		func(in []float32) {
			// The callback buffer is reused by the backend, so hand
			// downstream a copy.
			frame := make([]float32, len(in))
			copy(frame, in)
			onFrame(frame)
		})
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	p.stream = stream
	p.started = true

	p.logger.Info("Audio capture started",
		String("backend", "portaudio"),
		Int("sample_rate", p.sampleRate),
		Int("frames_per_buffer", p.framesPerBuffer))
	return nil
}

// Stop halts frame delivery and releases the stream. It is a no-op when
// capture is not running.
func (p *PortAudioDevice) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	if err := p.stream.Stop(); err != nil {
		p.logger.Warn("Error stopping capture stream", Error(err))
	}
	if err := p.stream.Close(); err != nil {
		p.logger.Warn("Error closing capture stream", Error(err))
	}
	_ = portaudio.Terminate()

	p.stream = nil
	p.started = false

	p.logger.Info("Audio capture stopped", String("backend", "portaudio"))
	return nil
}
