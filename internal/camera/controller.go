package camera

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/logging"
)

const defaultQueueSize = 16

// Metrics receives controller measurements.
type Metrics interface {
	ObserveOperation(op string, kind Kind, duration time.Duration)
	SetStatus(status Status)
	SetRecording(running bool)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger. Default is the "camera" module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithEncoder sets the recording encoder.
func WithEncoder(encoder Encoder) Option {
	return func(c *Controller) {
		c.encoder = encoder
	}
}

// WithReaderFactory sets how still-capture image readers are created.
func WithReaderFactory(factory ReaderFactory) Option {
	return func(c *Controller) {
		c.newReader = factory
	}
}

// WithEventBus publishes controller events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithMetrics reports operation outcomes to m.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithQueueSize sets how many operations may wait for the worker.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

type task struct {
	op    string
	fn    func() error
	reply chan error
	// force runs the task even when the status is below OK.
	force bool
}

// Controller mediates all access to one camera. Device state is owned by a
// single worker goroutine; public methods enqueue work and wait for its result.
type Controller struct {
	manager   Manager
	encoder   Encoder
	newReader ReaderFactory
	bus       *events.Bus
	metrics   Metrics
	logger    *slog.Logger
	queueSize int

	status atomic.Int32

	lifecycleMu sync.Mutex
	started     bool
	closed      bool
	tasks       chan task
	quit        chan struct{}
	done        chan struct{}

	// Worker-owned state.
	device        Device
	caps          *Capabilities
	sess          *session
	outputs       *OutputSet
	previewTarget Target
	previewReq    *Request
	recordReq     *Request
	reader        ImageReader
	recording     *Recording
	faultStop     chan struct{}
}

// New creates an uninitialized controller for manager.
func New(manager Manager, opts ...Option) *Controller {
	c := &Controller{
		manager:   manager,
		queueSize: defaultQueueSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		outputs:   NewOutputSet(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetLogger("camera")
	}
	c.tasks = make(chan task, c.queueSize)
	c.status.Store(int32(StatusUninitialized))
	c.recording = NewRecording(c.encoder, c.logger)
	return c
}

// Events returns the bus controller events are published on, or nil.
func (c *Controller) Events() *events.Bus {
	return c.bus
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

func (c *Controller) setStatus(s Status, reason string) {
	old := Status(c.status.Swap(int32(s)))
	if old == s {
		return
	}
	c.logger.Info("Controller status changed", "from", old.String(), "to", s.String(), "reason", reason)
	if c.metrics != nil {
		c.metrics.SetStatus(s)
	}
	c.publish(events.StatusChangedEvent{
		Status:    s.String(),
		Previous:  old.String(),
		Reason:    reason,
		Timestamp: timestamp(),
	})
}

// Initialize connects to the camera service and starts the worker. It is a
// no-op when already initialized. From StatusError it releases the device and
// returns the controller to StatusOK.
func (c *Controller) Initialize(ctx context.Context) error {
	const op = "initialize"
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.manager == nil {
		return newError(KindServiceUnavailable, op, "camera service not available", nil)
	}
	if c.closed {
		return newError(KindInvalidState, op, "controller closed", nil)
	}

	switch c.Status() {
	case StatusOK:
		return nil
	case StatusError:
		err := c.exec(ctx, task{op: op, force: true, fn: func() error {
			if err := c.release(op); err != nil {
				c.logger.Warn("Device release during re-initialization failed", "error", err)
			}
			return nil
		}})
		if err != nil {
			return err
		}
	default:
		if !c.started {
			c.started = true
			go c.run()
		}
	}

	c.setStatus(StatusOK, "initialized")
	return nil
}

// Fail moves the controller to StatusError. Device operations are refused
// until Initialize is called again.
func (c *Controller) Fail(err error) {
	if c.Status() != StatusOK {
		return
	}
	c.logger.Error("Controller failed", "error", err)
	reason := "failed"
	if err != nil {
		reason = err.Error()
	}
	c.setStatus(StatusError, reason)
}

// Close releases the device and stops the worker. The controller cannot be
// initialized again afterwards.
func (c *Controller) Close(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if !c.started {
		c.status.Store(int32(StatusUninitialized))
		return nil
	}

	err := c.exec(ctx, task{op: "close", force: true, fn: func() error {
		return c.release("close")
	}})
	close(c.quit)
	<-c.done
	c.setStatus(StatusUninitialized, "closed")
	return err
}

// run is the worker loop. It is the only goroutine touching device state.
func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case t := <-c.tasks:
			t.reply <- c.handle(t)
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) handle(t task) error {
	if !t.force && c.Status() < StatusOK {
		return newError(KindNotReady, t.op, "controller status is "+c.Status().String(), nil)
	}

	start := time.Now()
	err := t.fn()
	if c.metrics != nil {
		c.metrics.ObserveOperation(t.op, KindOf(err), time.Since(start))
	}
	if err != nil {
		c.logger.Debug("Operation failed", "op", t.op, "error", err)
	}
	return err
}

// do runs fn on the worker and waits for it. Cancelling ctx stops the wait
// but not work that already started.
func (c *Controller) do(ctx context.Context, op string, fn func() error) error {
	if s := c.Status(); s < StatusOK {
		return newError(KindNotReady, op, "controller status is "+s.String(), nil)
	}
	return c.exec(ctx, task{op: op, fn: fn})
}

func (c *Controller) exec(ctx context.Context, t task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.reply = make(chan error, 1)
	select {
	case c.tasks <- t:
	case <-c.done:
		return newError(KindNotReady, t.op, "controller closed", nil)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListDevices returns the identifiers the camera service reports.
func (c *Controller) ListDevices(ctx context.Context) ([]string, error) {
	const op = "list_devices"
	var ids []string
	err := c.do(ctx, op, func() error {
		var err error
		ids, err = c.manager.DeviceIDs(ctx)
		if err != nil {
			return accessError(op, "query device set", err)
		}
		return nil
	})
	return ids, err
}

// Capabilities returns the snapshot of the open device.
func (c *Controller) Capabilities(ctx context.Context) (*Capabilities, error) {
	const op = "capabilities"
	var caps *Capabilities
	err := c.do(ctx, op, func() error {
		if c.caps == nil {
			return newError(KindInvalidState, op, "capabilities not available", nil)
		}
		caps = c.caps
		return nil
	})
	return caps, err
}

// DeviceID returns the open device identifier, or "" when none is open.
func (c *Controller) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := c.do(ctx, "device_id", func() error {
		if c.device != nil {
			id = c.device.ID()
		}
		return nil
	})
	return id, err
}

// OpenDevice opens the device with id. Capabilities are fetched later, on first use.
func (c *Controller) OpenDevice(ctx context.Context, id string) error {
	const op = "open_device"
	return c.do(ctx, op, func() error {
		if c.device != nil {
			return newError(KindInvalidState, op, "device "+c.device.ID()+" already open", nil)
		}
		return c.open(ctx, op, id)
	})
}

// CloseDevice closes the open device. It is a no-op when nothing is open.
func (c *Controller) CloseDevice(ctx context.Context) error {
	const op = "close_device"
	return c.do(ctx, op, func() error {
		return c.release(op)
	})
}

func (c *Controller) open(ctx context.Context, op, id string) error {
	device, err := c.manager.Open(ctx, id)
	if err != nil {
		return accessError(op, "open device "+id, err)
	}

	c.device = device
	c.sess = newSession(device, c.logger.With("device_id", id))
	c.outputs.Reset()

	if fr, ok := device.(FaultReporter); ok {
		c.faultStop = make(chan struct{})
		go c.watchFaults(fr.Faults(), c.faultStop)
	}

	c.logger.Info("Device opened", "device_id", id)
	c.publish(events.DeviceOpenedEvent{DeviceID: id, Timestamp: timestamp()})
	return nil
}

func (c *Controller) watchFaults(faults <-chan error, stop <-chan struct{}) {
	for {
		select {
		case err, ok := <-faults:
			if !ok {
				return
			}
			c.Fail(err)
		case <-stop:
			return
		}
	}
}

// release drops every piece of per-device state. The handle is considered
// released even when closing it fails.
func (c *Controller) release(op string) error {
	c.caps = nil
	if c.device == nil {
		return nil
	}

	c.recording.Reset()
	if c.metrics != nil {
		c.metrics.SetRecording(false)
	}
	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close image reader", "error", err)
		}
		c.reader = nil
	}
	if c.faultStop != nil {
		close(c.faultStop)
		c.faultStop = nil
	}

	device := c.device
	c.device = nil
	c.sess = nil
	c.previewReq = nil
	c.recordReq = nil
	c.outputs.Reset()

	id := device.ID()
	c.publish(events.DeviceClosedEvent{DeviceID: id, Timestamp: timestamp()})
	if err := device.Close(); err != nil {
		return accessError(op, "close device "+id, err)
	}
	c.logger.Info("Device closed", "device_id", id)
	return nil
}

// ensureOpen opens the first available device when none is open and fetches
// the capabilities snapshot if it is missing.
func (c *Controller) ensureOpen(ctx context.Context, op string) error {
	if c.device == nil {
		ids, err := c.manager.DeviceIDs(ctx)
		if err != nil {
			return accessError(op, "query device set", err)
		}
		if len(ids) == 0 {
			return newError(KindNoDevicesAvailable, op, "no devices", nil)
		}
		if err := c.open(ctx, op, ids[0]); err != nil {
			return err
		}
	}

	if c.caps == nil {
		caps, err := c.device.Capabilities()
		if err != nil {
			return accessError(op, "query capabilities", err)
		}
		if caps == nil {
			c.logger.Warn("Device reports no capabilities", "device_id", c.device.ID())
		}
		c.caps = caps
	}
	return nil
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
