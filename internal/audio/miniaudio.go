package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/pkg/logger"
)

// MiniaudioDevice captures microphone audio in-process via the miniaudio
// bindings. It asks the backend for float32 mono at the configured rate and
// re-chunks deliveries to the configured frame size.
type MiniaudioDevice struct {
	sampleRate      int
	channels        int
	framesPerBuffer int
	logger          *logger.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	chunker *frameChunker
	started bool
}

// NewMiniaudioDevice creates a miniaudio capture device from the audio config.
func NewMiniaudioDevice(cfg *config.Config, log *logger.Logger) *MiniaudioDevice {
	return &MiniaudioDevice{
		sampleRate:      cfg.Audio.SampleRate,
		channels:        cfg.Audio.Channels,
		framesPerBuffer: cfg.Audio.FramesPerBuffer,
		logger:          log.Named("miniaudio"),
		chunker:         newFrameChunker(cfg.Audio.FramesPerBuffer),
	}
}

// Start acquires the default capture device and begins delivering frames.
func (m *MiniaudioDevice) Start(onFrame FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("miniaudio device already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("miniaudio: " + message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.framesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	m.chunker.reset()

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			m.onData(pInput, frameCount, onFrame)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.mctx = mctx
	m.device = device
	m.started = true

	m.logger.Info("Audio capture started",
		String("backend", "miniaudio"),
		Int("sample_rate", m.sampleRate),
		Int("frames_per_buffer", m.framesPerBuffer))
	return nil
}

// onData converts a raw f32le delivery into samples and feeds the chunker.
func (m *MiniaudioDevice) onData(pInput []byte, frameCount uint32, onFrame FrameFunc) {
	n := int(frameCount) * m.channels
	if len(pInput) < n*4 {
		n = len(pInput) / 4
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInput[i*4:]))
	}
	m.chunker.push(samples, onFrame)
}

// Stop halts frame delivery and releases the device. It is a no-op when
// capture is not running.
func (m *MiniaudioDevice) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	if err := m.device.Stop(); err != nil {
		m.logger.Warn("Error stopping capture device", Error(err))
	}
	m.device.Uninit()
	_ = m.mctx.Uninit()
	m.mctx.Free()

	m.device = nil
	m.mctx = nil
	m.started = false

	m.logger.Info("Audio capture stopped", String("backend", "miniaudio"))
	return nil
}
