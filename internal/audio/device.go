package audio

import (
	"fmt"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/pkg/logger"
)

// FrameFunc receives one buffer of normalized mono samples. Backends invoke
// it on their own capture clock, so implementations must return quickly and
// must not retain the slice.
type FrameFunc func(samples []float32)

// Device is a microphone capture backend. Start acquires the device and
// begins delivering frames to onFrame; Stop halts delivery and releases the
// device. A Device is single-use per Start/Stop cycle.
type Device interface {
	Start(onFrame FrameFunc) error
	Stop() error
}

// NewDevice creates the capture backend selected by the configuration.
func NewDevice(cfg *config.Config, log *logger.Logger) (Device, error) {
	switch cfg.Audio.Backend {
	case "miniaudio":
		return NewMiniaudioDevice(cfg, log), nil
	case "portaudio":
		return NewPortAudioDevice(cfg, log), nil
	case "ffmpeg":
		return NewFFmpegDevice(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s", cfg.Audio.Backend)
	}
}

// frameChunker re-slices backend deliveries into fixed-size frames so
// downstream consumers always see exactly size samples per callback,
// regardless of the period granularity the backend happens to use.
type frameChunker struct {
	size    int
	pending []float32
}

func newFrameChunker(size int) *frameChunker {
	return &frameChunker{size: size}
}

func (c *frameChunker) push(samples []float32, emit FrameFunc) {
	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.size {
		frame := make([]float32, c.size)
		copy(frame, c.pending[:c.size])
		c.pending = c.pending[c.size:]
		emit(frame)
	}
}

func (c *frameChunker) reset() {
	c.pending = nil
}
