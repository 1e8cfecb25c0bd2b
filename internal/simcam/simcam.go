// Package simcam is a simulated camera service. Devices produce JPEG colour
// bars into whatever targets a request names, at a fixed frame rate.
package simcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/logging"
)

var (
	// ErrUnknownDevice is returned by Open for an id that is not configured.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrDeviceInUse is returned by Open when the device is already open.
	ErrDeviceInUse = errors.New("device in use")
	// ErrDeviceClosed is returned by every call on a closed device.
	ErrDeviceClosed = errors.New("device closed")
	// ErrUnconfiguredTarget is returned when a request names a target that is
	// not part of the configured outputs.
	ErrUnconfiguredTarget = errors.New("target not configured")
	// ErrStreaming is returned by ConfigureOutputs while a repeating request runs.
	ErrStreaming = errors.New("repeating request active")
)

// Defaults applied by NewManager.
const (
	DefaultFrameRate = 30
	DefaultQuality   = 75
)

// Config describes the simulated devices. All devices share the same capabilities.
type Config struct {
	DeviceIDs []string
	Processed []camera.Size
	JPEG      []camera.Size
	// NoCapabilities makes devices report no snapshot at all.
	NoCapabilities bool
	FrameRate      int
	JPEGQuality    int
	Logger         *slog.Logger
}

// DefaultConfig is one back camera supporting 640x480 and 1080p.
func DefaultConfig() Config {
	sizes := []camera.Size{camera.DefaultSize, camera.HighResolutionSize}
	return Config{
		DeviceIDs: []string{"0"},
		Processed: sizes,
		JPEG:      sizes,
		FrameRate: DefaultFrameRate,
	}
}

// Manager implements camera.Manager.
type Manager struct {
	cfg      Config
	patterns *patterns
	logger   *slog.Logger

	mu   sync.Mutex
	open map[string]*Device
}

// NewManager creates a manager for cfg.
func NewManager(cfg Config) *Manager {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = DefaultQuality
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("simcam")
	}
	return &Manager{
		cfg:      cfg,
		patterns: newPatterns(cfg.JPEGQuality),
		logger:   logger,
		open:     make(map[string]*Device),
	}
}

// DeviceIDs returns the configured device identifiers.
func (m *Manager) DeviceIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(m.cfg.DeviceIDs), nil
}

// Open opens device id. A device can be open only once at a time.
func (m *Manager) Open(ctx context.Context, id string) (camera.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !slices.Contains(m.cfg.DeviceIDs, id) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[id]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceInUse, id)
	}

	d := newDevice(id, m)
	m.open[id] = d
	m.logger.Info("Simulated device opened", "device_id", id, "frame_rate", m.cfg.FrameRate)
	return d, nil
}

// Device returns the open device with id, if any. Used to inject faults.
func (m *Manager) Device(id string) (*Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.open[id]
	return d, ok
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.open, id)
	m.mu.Unlock()
}

func (m *Manager) capabilities() *camera.Capabilities {
	if m.cfg.NoCapabilities {
		return nil
	}
	return camera.NewCapabilities(m.cfg.Processed, m.cfg.JPEG)
}
