package nats

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/logging"
)

// DefaultRequestTimeout bounds how long one control request may hold the controller.
const DefaultRequestTimeout = 10 * time.Second

// errUnknownAction is returned for control subjects without a handler.
var errUnknownAction = errors.New("unknown control action")

// Camera is the controller surface reachable over NATS.
type Camera interface {
	Status() camera.Status
	ConfigurePreview(ctx context.Context, surface camera.Surface) error
	StartPreview(ctx context.Context) error
	UpdatePreview(ctx context.Context, controls *camera.ManualControls) error
	StartRecording(ctx context.Context, useHardwareEncoder bool) error
	StopRecording(ctx context.Context) error
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	URL      string
	Name     string
	EventBus *events.Bus
	// Camera enables control subjects; nil publishes events only.
	Camera Camera
	// Preview is the surface preview.start configures.
	Preview        camera.Surface
	RequestTimeout time.Duration
	Logger         logging.Logger
}

// Bridge publishes bus events to NATS and serves control requests.
type Bridge struct {
	opts   BridgeOptions
	logger logging.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	sub    *nats.Subscription
	unsubs []func()
}

// NewBridge creates a bridge. Nothing connects until Start.
func NewBridge(opts BridgeOptions) *Bridge {
	if opts.Name == "" {
		opts.Name = "camops"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("nats")
	}
	return &Bridge{opts: opts, logger: logger}
}

// Start connects and begins forwarding. Reconnects are handled by the client.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.opts.URL,
		nats.Name(b.opts.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return err
	}
	b.conn = conn

	if b.opts.Camera != nil {
		sub, subErr := conn.Subscribe(SubjectControlPrefix+".>", b.handleControl)
		if subErr != nil {
			b.closeConn()
			return subErr
		}
		b.sub = sub
	}

	if bus := b.opts.EventBus; bus != nil {
		b.unsubs = []func(){
			bus.Subscribe(func(e events.StatusChangedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.DeviceOpenedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.DeviceClosedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.PreviewStartedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.PreviewUpdatedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.RecordingStartedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.RecordingStoppedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.CaptureCompletedEvent) { b.publish(e) }),
			bus.Subscribe(func(e events.CaptureFailedEvent) { b.publish(e) }),
		}
	}

	b.logger.Info("NATS bridge connected", "url", b.opts.URL, "control", b.opts.Camera != nil)
	return nil
}

// Stop unsubscribes from the bus and closes the connection.
func (b *Bridge) Stop() {
	// Bus handlers take mu, so unsubscribe without holding it.
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeConn()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected reports whether the client currently has a server connection.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

func (b *Bridge) closeConn() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
		b.sub = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *Bridge) publish(ev events.Event) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}

	name := events.Name(ev)
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "event", name, "error", err)
		return
	}
	if err := conn.Publish(SubjectEvent(name), data); err != nil {
		b.logger.Debug("Failed to publish event", "event", name, "error", err)
	}
}

func (b *Bridge) handleControl(msg *nats.Msg) {
	action := strings.TrimPrefix(msg.Subject, SubjectControlPrefix+".")
	req, err := UnmarshalControlRequest(msg.Data)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.RequestTimeout)
		err = b.dispatch(ctx, action, req)
		cancel()
	}

	reply := ControlReply{
		OK:        err == nil,
		Action:    action,
		Status:    b.opts.Camera.Status().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		reply.Kind = string(camera.KindOf(err))
		reply.Error = err.Error()
		b.logger.Warn("Control request failed", "action", action, "error", err)
	} else {
		b.logger.Info("Control request handled", "action", action)
	}

	if msg.Reply == "" {
		return
	}
	data, err := reply.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal control reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		b.logger.Debug("Failed to send control reply", "action", action, "error", err)
	}
}

func (b *Bridge) dispatch(ctx context.Context, action string, req ControlRequest) error {
	cam := b.opts.Camera
	switch action {
	case ActionStatus:
		return nil
	case ActionPreviewStart:
		if b.opts.Preview == nil {
			return errors.New("no preview surface")
		}
		if err := cam.ConfigurePreview(ctx, b.opts.Preview); err != nil {
			return err
		}
		return cam.StartPreview(ctx)
	case ActionPreviewUpdate:
		return cam.UpdatePreview(ctx, req.Controls)
	case ActionRecordingStart:
		return cam.StartRecording(ctx, req.Hardware)
	case ActionRecordingStop:
		return cam.StopRecording(ctx)
	default:
		return errUnknownAction
	}
}
