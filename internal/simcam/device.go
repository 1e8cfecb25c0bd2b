package simcam

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camops/internal/camera"
)

// sized is implemented by targets that know their buffer size.
type sized interface {
	Size() camera.Size
}

// Device is a simulated open camera. It implements camera.Device and
// camera.FaultReporter.
type Device struct {
	id       string
	manager  *Manager
	logger   *slog.Logger
	interval time.Duration

	mu         sync.Mutex
	closed     bool
	configured []camera.Target
	repeating  *camera.Request
	stopLoop   chan struct{}
	faults     chan error

	// inflight tracks the frame loop and one-shot captures.
	inflight sync.WaitGroup

	sequence  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func newDevice(id string, m *Manager) *Device {
	return &Device{
		id:       id,
		manager:  m,
		logger:   m.logger.With("device_id", id),
		interval: time.Second / time.Duration(m.cfg.FrameRate),
		faults:   make(chan error, 1),
	}
}

// ID returns the device identifier.
func (d *Device) ID() string {
	return d.id
}

// Capabilities returns the configured snapshot, or nil when the manager is
// configured to report none.
func (d *Device) Capabilities() (*camera.Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return d.manager.capabilities(), nil
}

// ConfigureOutputs replaces the output targets. The device must not be streaming.
func (d *Device) ConfigureOutputs(targets []camera.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	if d.repeating != nil {
		return ErrStreaming
	}
	d.configured = slices.Clone(targets)
	d.logger.Debug("Outputs configured", "targets", targetNames(targets))
	return nil
}

// Configured returns the current output targets.
func (d *Device) Configured() []camera.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.configured)
}

// CreateRequest returns a template draft for purpose with 3A on auto.
func (d *Device) CreateRequest(purpose camera.Purpose) (*camera.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	req := camera.NewRequest(purpose)
	req.Set(camera.KeyControlMode, camera.ControlModeAuto)
	return req, nil
}

// SubmitRepeating streams req until StopRepeating or another SubmitRepeating.
// Targets are captured at submission; later edits to req have no effect.
func (d *Device) SubmitRepeating(req *camera.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	targets, err := d.checkTargets(req)
	if err != nil {
		return err
	}

	d.stopLocked()
	stop := make(chan struct{})
	d.stopLoop = stop
	d.repeating = req

	d.inflight.Add(1)
	go d.stream(targets, stop)
	d.logger.Debug("Repeating request submitted", "purpose", req.Purpose.String(), "targets", targetNames(targets))
	return nil
}

// SubmitOnce captures a single frame into every target of req and reports to
// results from the device goroutine.
func (d *Device) SubmitOnce(req *camera.Request, results camera.ResultListener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	targets, err := d.checkTargets(req)
	if err != nil {
		return err
	}

	id, purpose, settings := req.ID, req.Purpose, req.Settings()
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		seq, ok := d.emit(targets)
		if results == nil {
			return
		}
		if !ok {
			results.OnCaptureFailed(camera.CaptureFailure{RequestID: id, Reason: errFrameDropped})
			return
		}
		results.OnCaptureCompleted(camera.CaptureResult{
			RequestID:   id,
			Purpose:     purpose,
			Settings:    settings,
			FrameNumber: seq,
			Timestamp:   time.Now(),
		})
	}()
	return nil
}

// StopRepeating ends the repeating request without waiting for the last frame.
func (d *Device) StopRepeating() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	d.stopLocked()
	return nil
}

// WaitUntilIdle blocks until no frame is being produced.
func (d *Device) WaitUntilIdle() error {
	d.inflight.Wait()
	return nil
}

// Faults implements camera.FaultReporter.
func (d *Device) Faults() <-chan error {
	return d.faults
}

// InjectFault reports a fatal device error. It is dropped if one is already pending.
func (d *Device) InjectFault(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.faults <- err:
		d.logger.Warn("Simulated fault injected", "error", err)
	default:
	}
}

// Stats returns how many frames were delivered and dropped by targets.
func (d *Device) Stats() (delivered, dropped uint64) {
	return d.delivered.Load(), d.dropped.Load()
}

// Close stops streaming, waits for in-flight frames and releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.stopLocked()
	d.closed = true
	close(d.faults)
	d.mu.Unlock()

	d.inflight.Wait()
	d.manager.release(d.id)
	d.logger.Info("Simulated device closed")
	return nil
}

func (d *Device) stopLocked() {
	if d.stopLoop != nil {
		close(d.stopLoop)
		d.stopLoop = nil
	}
	d.repeating = nil
}

// checkTargets returns the request targets if every one is configured.
func (d *Device) checkTargets(req *camera.Request) ([]camera.Target, error) {
	if d.closed {
		return nil, ErrDeviceClosed
	}
	targets := req.Targets()
	for _, t := range targets {
		if !slices.Contains(d.configured, t) {
			return nil, &TargetError{Target: t.Name()}
		}
	}
	return targets, nil
}

func (d *Device) stream(targets []camera.Target, stop <-chan struct{}) {
	defer d.inflight.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.emit(targets)
		}
	}
}

// emit writes one frame into each target. It returns the frame sequence and
// whether every sink accepted it.
func (d *Device) emit(targets []camera.Target) (uint64, bool) {
	seq := d.sequence.Add(1)
	now := time.Now()
	ok := true

	for _, t := range targets {
		sink, isSink := t.(camera.FrameSink)
		if !isSink {
			continue
		}
		size := d.frameSize(t)
		data, err := d.manager.patterns.frame(size, seq)
		if err != nil {
			d.logger.Error("Failed to render frame", "size", size.String(), "error", err)
			ok = false
			continue
		}
		if sink.Deliver(camera.Frame{Data: data, Size: size, Sequence: seq, Timestamp: now}) {
			d.delivered.Add(1)
		} else {
			d.dropped.Add(1)
			ok = false
		}
	}
	return seq, ok
}

func (d *Device) frameSize(t camera.Target) camera.Size {
	if s, ok := t.(sized); ok {
		if size := s.Size(); size.Width > 0 && size.Height > 0 {
			return size
		}
	}
	if len(d.manager.cfg.Processed) > 0 {
		return d.manager.cfg.Processed[0]
	}
	return camera.DefaultSize
}

func targetNames(targets []camera.Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name()
	}
	return names
}
