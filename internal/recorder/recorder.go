// Package recorder implements camera.Encoder on top of an ffmpeg subprocess.
// Frames delivered to the encoder target are MJPEG images piped into ffmpeg's
// standard input.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/ffmpeg"
	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/process"
)

// Defaults for Config.
const (
	DefaultOutputDir = "recordings"
	DefaultFrameRate = 30
	DefaultQueueSize = 8
)

var (
	// ErrNotConfigured is returned by Start before Configure.
	ErrNotConfigured = errors.New("encoder not configured")
	// ErrRunning is returned when the encoder is already running.
	ErrRunning = errors.New("encoder already running")
	// ErrNotRunning is returned by Stop when nothing is running.
	ErrNotRunning = errors.New("encoder not running")
)

// Metrics receives per-frame and encoder progress measurements.
type Metrics interface {
	ObserveFrame(dropped bool)
	SetEncodeProgress(fps, speed float64)
}

// Config holds the recorder settings.
type Config struct {
	OutputDir       string
	FFmpegBinary    string
	HardwareEncoder string // used when hardware encoding is requested; empty picks the default
	FrameRate       int
	QueueSize       int
	Options         []ffmpeg.OptionType
	LogLevel        string // ffmpeg -loglevel, default "info"

	// GracefulTimeout bounds how long Stop waits for ffmpeg to finish the file.
	GracefulTimeout time.Duration
}

// Recorder encodes frames into a file per recording.
type Recorder struct {
	cfg     Config
	logger  *slog.Logger
	ffmpegL logging.Logger
	metrics Metrics
	target  *target

	mu       sync.Mutex
	size     camera.Size
	encoder  string
	profile  ffmpeg.HardwareProfile
	bitrate  int
	proc     *process.Process
	frames   chan []byte
	writerWG sync.WaitGroup
	output   string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics reports frames and encode progress to m.
func WithMetrics(m Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New creates a recorder.
func New(cfg Config, opts ...Option) *Recorder {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Options == nil {
		cfg.Options = ffmpeg.GetDefaultOptions()
	}

	r := &Recorder{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.GetLogger("recorder")
	}
	r.ffmpegL = logging.GetLogger("ffmpeg")
	r.target = &target{name: "recorder", owner: r}
	return r
}

// Target returns the frame sink the device writes into. It is the same value
// for the lifetime of the recorder.
func (r *Recorder) Target() camera.Target {
	return r.target
}

// Configure sets size, encoder and bitrate for the next Start.
func (r *Recorder) Configure(size camera.Size, useHardwareEncoder bool, bitrate int) error {
	if err := ffmpeg.ValidateOptions(r.cfg.Options); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil {
		return ErrRunning
	}
	r.size = size
	r.bitrate = bitrate
	r.encoder, r.profile = ffmpeg.SelectEncoder(useHardwareEncoder, r.cfg.HardwareEncoder)
	r.logger.Debug("Encoder configured", "size", size.String(), "encoder", r.encoder, "bitrate", bitrate)
	return nil
}

// Start spawns ffmpeg writing a new file in the output directory.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil {
		return ErrRunning
	}
	if r.encoder == "" {
		return ErrNotConfigured
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	output := filepath.Join(r.cfg.OutputDir, "rec-"+time.Now().Format("20060102-150405.000")+".mp4")

	command := ffmpeg.BuildRecordCommand(&ffmpeg.RecordParams{
		Binary:       r.cfg.FFmpegBinary,
		Width:        r.size.Width,
		Height:       r.size.Height,
		FPS:          r.cfg.FrameRate,
		Encoder:      r.encoder,
		Bitrate:      r.bitrate,
		GlobalArgs:   r.profile.GlobalArgs,
		VideoFilters: r.profile.VideoFilters,
		Options:      r.cfg.Options,
		LogLevel:     r.cfg.LogLevel,
		OutputPath:   output,
	})

	proc := process.New(filepath.Base(output), command, r.logger,
		process.WithStdin(),
		process.WithLogParser(r.ffmpegL, ffmpeg.ParseLogLevel),
		process.WithOutputHandler(process.OutputHandlerFunc(r.handleOutput)),
		process.WithTimeouts(r.cfg.GracefulTimeout, 0),
	)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	frames := make(chan []byte, r.cfg.QueueSize)
	r.proc = proc
	r.frames = frames
	r.output = output

	r.writerWG.Add(1)
	go r.writeFrames(proc, frames)

	r.logger.Info("Encoder started", "output", output, "encoder", r.encoder, "size", r.size.String())
	return nil
}

// Stop flushes queued frames, closes ffmpeg's input and waits for the file
// to be finalized. The process is released even when ffmpeg exits non-zero.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	proc, frames := r.proc, r.frames
	if proc == nil {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.proc = nil
	r.frames = nil
	r.mu.Unlock()

	close(frames)
	r.writerWG.Wait()

	exitCode := proc.Stop()
	if r.metrics != nil {
		r.metrics.SetEncodeProgress(0, 0)
	}
	if exitCode != 0 {
		r.logger.Warn("Encoder exited with error", "output", r.Output(), "exit_code", exitCode)
		return fmt.Errorf("ffmpeg exited with code %d", exitCode)
	}
	r.logger.Info("Encoder stopped", "output", r.Output())
	return nil
}

// Running reports whether ffmpeg is running.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc != nil
}

// Output returns the path of the current or last recording.
func (r *Recorder) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

// Stats returns frames written and dropped by the target.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.target.written.Load(), r.target.dropped.Load()
}

// enqueue hands a frame to the writer without blocking the device.
func (r *Recorder) enqueue(frame camera.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frames == nil || frame.Size != r.size {
		return false
	}
	select {
	case r.frames <- frame.Data:
		return true
	default:
		return false
	}
}

func (r *Recorder) writeFrames(proc *process.Process, frames <-chan []byte) {
	defer r.writerWG.Done()
	failed := false
	for data := range frames {
		if failed {
			continue
		}
		if _, err := proc.Write(data); err != nil {
			// Keep draining so Deliver never blocks; ffmpeg's exit is reported by Stop.
			r.logger.Error("Failed to write frame to encoder", "error", err)
			failed = true
		}
	}
}

func (r *Recorder) handleOutput(_, line string) {
	p, ok := ffmpeg.ParseProgress(line)
	if !ok || r.metrics == nil {
		return
	}
	r.metrics.SetEncodeProgress(p.FPS, p.Speed)
}

// target is the encoder's input surface as seen by the device.
type target struct {
	name    string
	owner   *Recorder
	written atomic.Uint64
	dropped atomic.Uint64
}

func (t *target) Name() string { return t.name }

// Size is the configured recording size; the device renders frames at it.
func (t *target) Size() camera.Size {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.size
}

func (t *target) Deliver(frame camera.Frame) bool {
	ok := t.owner.enqueue(frame)
	if ok {
		t.written.Add(1)
	} else {
		t.dropped.Add(1)
	}
	if t.owner.metrics != nil {
		t.owner.metrics.ObserveFrame(!ok)
	}
	return ok
}
