package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// FFmpegDevice captures microphone audio through an external ffmpeg process
// reading from an OS capture source (pulse, alsa, avfoundation, dshow). The
// process writes raw f32le mono to stdout at the configured sample rate, and
// the read loop re-chunks it into fixed-size frames.
type FFmpegDevice struct {
	ffmpegPath      string
	input           string
	format          string
	sampleRate      int
	channels        int
	framesPerBuffer int
	logger          *logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	ctx     context.Context
	cancel  context.CancelFunc
	chunker *frameChunker
	started bool
}

// NewFFmpegDevice creates an ffmpeg capture device from the audio config.
func NewFFmpegDevice(cfg *config.Config, log *logger.Logger) *FFmpegDevice {
	return &FFmpegDevice{
		ffmpegPath:      cfg.Audio.FFmpegPath,
		input:           cfg.Audio.FFmpegInput,
		format:          cfg.Audio.FFmpegFormat,
		sampleRate:      cfg.Audio.SampleRate,
		channels:        cfg.Audio.Channels,
		framesPerBuffer: cfg.Audio.FramesPerBuffer,
		logger:          log.Named("ffmpeg"),
		chunker:         newFrameChunker(cfg.Audio.FramesPerBuffer),
	}
}

// Start launches the ffmpeg process and begins delivering frames.
func (f *FFmpegDevice) Start(onFrame FrameFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return fmt.Errorf("ffmpeg device already started")
	}

	f.logger.Debug("Starting ffmpeg capture process",
		String("path", f.ffmpegPath),
		String("input", f.input),
		String("input_format", f.format))

	args := []string{
		"-loglevel", "error", // Minimal logging
		"-fflags", "nobuffer", // Disable input buffering
		"-flags", "low_delay", // Enable low delay mode
		"-f", f.format, // Capture input format (pulse, alsa, avfoundation, ...)
		"-i", f.input, // Capture source
		"-f", "f32le", // Raw float output so the encoder owns the PCM conversion
		"-acodec", "pcm_f32le", // Audio codec
		"-ac", fmt.Sprintf("%d", f.channels), // Channels
		"-ar", fmt.Sprintf("%d", f.sampleRate), // Sample rate
		"-flush_packets", "1", // Flush packets immediately
		"pipe:1", // Output to stdout
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.cmd = cmd
	f.stdout = stdout
	f.ctx = ctx
	f.cancel = cancel
	f.chunker.reset()
	f.started = true

	go f.processOutput(ctx, stdout, onFrame)

	f.logger.Info("Audio capture started",
		String("backend", "ffmpeg"),
		Int("sample_rate", f.sampleRate),
		Int("frames_per_buffer", f.framesPerBuffer))
	return nil
}

// processOutput reads raw f32le audio from ffmpeg stdout and feeds the
// chunker. Reads can split a sample across boundaries, so leftover bytes
// carry over between iterations.
func (f *FFmpegDevice) processOutput(ctx context.Context, stdout io.ReadCloser, onFrame FrameFunc) {
	buffer := make([]byte, f.framesPerBuffer*4)
	var pending []byte
	bytesProcessed := 0
	lastLogTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Context canceled, stopping ffmpeg output processing",
				Int("total_bytes_processed", bytesProcessed))
			return
		default:
			n, err := stdout.Read(buffer)
			if err != nil {
				if err == io.EOF {
					f.logger.Warn("FFmpeg output ended",
						Int("total_bytes_processed", bytesProcessed))
				} else if ctx.Err() == nil {
					f.logger.Error("Error reading from ffmpeg", Error(err),
						Int("total_bytes_processed", bytesProcessed))
				}
				return
			}

			if n > 0 {
				bytesProcessed += n

				// Log progress every 30 seconds
				if time.Since(lastLogTime) > 30*time.Second {
					f.logger.Debug("FFmpeg capture progress",
						Int("bytes_processed", bytesProcessed),
						Int("bytes_this_read", n))
					lastLogTime = time.Now()
				}

				pending = append(pending, buffer[:n]...)
				whole := len(pending) / 4
				if whole == 0 {
					continue
				}
				samples := make([]float32, whole)
				for i := range samples {
					samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pending[i*4:]))
				}
				pending = pending[whole*4:]
				f.chunker.push(samples, onFrame)
			}
		}
	}
}

// Stop kills the ffmpeg process and halts frame delivery. It is a no-op when
// capture is not running.
func (f *FFmpegDevice) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return nil
	}

	f.cancel()

	if f.cmd != nil && f.cmd.Process != nil {
		// Kill and wait without logging errors. These are expected as
		// ffmpeg may already be terminated by the context cancel.
		_ = f.cmd.Process.Kill()
		_ = f.cmd.Wait()
	}

	f.cmd = nil
	f.stdout = nil
	f.started = false

	f.logger.Info("Audio capture stopped", String("backend", "ffmpeg"))
	return nil
}
