package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// callLog records collaborator calls in the order the controller made them.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

type fakeTarget struct {
	name string
}

func (t *fakeTarget) Name() string { return t.name }

func targetNames(targets []Target) string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name())
	}
	return "[" + strings.Join(names, ",") + "]"
}

type fakeDevice struct {
	id   string
	log  *callLog
	caps *Capabilities

	capsErr      error
	configureErr error
	submitErr    error

	capsCalls     int
	lastRepeating *Request
	closed        bool
	faults        chan error
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) Capabilities() (*Capabilities, error) {
	d.capsCalls++
	d.log.add("capabilities")
	return d.caps, d.capsErr
}

func (d *fakeDevice) ConfigureOutputs(targets []Target) error {
	d.log.add("configure:%s", targetNames(targets))
	return d.configureErr
}

func (d *fakeDevice) CreateRequest(purpose Purpose) (*Request, error) {
	return NewRequest(purpose), nil
}

func (d *fakeDevice) SubmitRepeating(req *Request) error {
	d.log.add("submit_repeating:%s:%s", req.Purpose, targetNames(req.Targets()))
	d.lastRepeating = req
	return d.submitErr
}

// SubmitOnce delivers one JPEG into every reader target, then reports the result.
func (d *fakeDevice) SubmitOnce(req *Request, results ResultListener) error {
	d.log.add("submit_once:%s:%s", req.Purpose, targetNames(req.Targets()))
	if d.submitErr != nil {
		return d.submitErr
	}
	for _, t := range req.Targets() {
		if r, ok := t.(*fakeReader); ok {
			r.deliver(Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Size: r.size, Timestamp: time.Now()})
		}
	}
	if results != nil {
		results.OnCaptureCompleted(CaptureResult{RequestID: req.ID, Purpose: req.Purpose, Settings: req.Settings(), FrameNumber: 1})
	}
	return nil
}

func (d *fakeDevice) StopRepeating() error {
	d.log.add("stop_repeating")
	return nil
}

func (d *fakeDevice) WaitUntilIdle() error {
	d.log.add("wait_idle")
	return nil
}

func (d *fakeDevice) Close() error {
	d.log.add("close")
	d.closed = true
	return nil
}

// faultyDevice also reports asynchronous faults.
type faultyDevice struct {
	*fakeDevice
}

func (d faultyDevice) Faults() <-chan error { return d.faults }

type fakeManager struct {
	ids     []string
	devices map[string]Device
	idsErr  error
	openErr error
}

func (m *fakeManager) DeviceIDs(context.Context) ([]string, error) {
	return slices.Clone(m.ids), m.idsErr
}

func (m *fakeManager) Open(_ context.Context, id string) (Device, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, errors.New("unknown device " + id)
	}
	return d, nil
}

type fakeEncoder struct {
	log    *callLog
	target *fakeTarget

	size     Size
	hardware bool
	bitrate  int

	startErr error
	stopErr  error
	running  bool
}

func (e *fakeEncoder) Configure(size Size, useHardwareEncoder bool, bitrate int) error {
	e.log.add("encoder.configure:%s:%d", size, bitrate)
	e.size, e.hardware, e.bitrate = size, useHardwareEncoder, bitrate
	return nil
}

func (e *fakeEncoder) Start() error {
	e.log.add("encoder.start")
	if e.startErr != nil {
		return e.startErr
	}
	e.running = true
	return nil
}

// Stop releases the encoder even when it reports stopErr.
func (e *fakeEncoder) Stop() error {
	e.log.add("encoder.stop")
	if !e.running {
		return errors.New("encoder not running")
	}
	e.running = false
	return e.stopErr
}

func (e *fakeEncoder) Target() Target { return e.target }

// fakeReader is its own target so the fake device can find it in a request.
type fakeReader struct {
	size     Size
	capacity int

	mu       sync.Mutex
	pending  []*Image
	handler  func(ImageReader)
	released int
	closed   bool
}

func (r *fakeReader) Name() string   { return "reader" }
func (r *fakeReader) Size() Size     { return r.size }
func (r *fakeReader) Target() Target { return r }

func (r *fakeReader) AcquireNextImage() (*Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil, errors.New("no image")
	}
	img := r.pending[0]
	r.pending = r.pending[1:]
	return img, nil
}

func (r *fakeReader) SetOnImageAvailable(fn func(ImageReader)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = fn
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) deliver(frame Frame) {
	r.mu.Lock()
	img := NewImage(frame, FormatJPEG, func() {
		r.mu.Lock()
		r.released++
		r.mu.Unlock()
	})
	r.pending = append(r.pending, img)
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(r)
	}
}

type readerFactory struct {
	created []*fakeReader
}

func (f *readerFactory) newReader(size Size, _ Format, capacity int) (ImageReader, error) {
	r := &fakeReader{size: size, capacity: capacity}
	f.created = append(f.created, r)
	return r, nil
}

type fakeSurface struct {
	width, height int
	target        *fakeTarget
}

func (s *fakeSurface) SetFixedSize(width, height int) {
	s.width, s.height = width, height
}

func (s *fakeSurface) Target() Target { return s.target }

// targetLogHandler copies encoder attach and detach records into the call
// log, so they are ordered with the device calls.
type targetLogHandler struct {
	slog.Handler
	log *callLog
}

func (h targetLogHandler) Handle(ctx context.Context, r slog.Record) error {
	action := ""
	switch r.Message {
	case "Encoder target attached":
		action = "attach"
	case "Encoder target detached":
		action = "detach"
	}
	if action != "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "to" || a.Key == "from" {
				h.log.add("%s:%s", action, a.Value.String())
				return false
			}
			return true
		})
	}
	return h.Handler.Handle(ctx, r)
}

func (h targetLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return targetLogHandler{Handler: h.Handler.WithAttrs(attrs), log: h.log}
}

func (h targetLogHandler) WithGroup(name string) slog.Handler {
	return targetLogHandler{Handler: h.Handler.WithGroup(name), log: h.log}
}

// lockedBuffer collects log output written from the worker goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var hdCaps = NewCapabilities(
	[]Size{DefaultSize, HighResolutionSize},
	[]Size{DefaultSize, HighResolutionSize},
)

type harness struct {
	ctrl    *Controller
	log     *callLog
	logs    *lockedBuffer
	manager *fakeManager
	device  *fakeDevice
	encoder *fakeEncoder
	readers *readerFactory
	surface *fakeSurface
}

func newHarness(t *testing.T, caps *Capabilities) *harness {
	t.Helper()
	log := &callLog{}
	device := &fakeDevice{id: "0", log: log, caps: caps}
	h := &harness{
		log:     log,
		logs:    &lockedBuffer{},
		device:  device,
		manager: &fakeManager{ids: []string{"0"}, devices: map[string]Device{"0": device}},
		encoder: &fakeEncoder{log: log, target: &fakeTarget{name: "encoder"}},
		readers: &readerFactory{},
		surface: &fakeSurface{target: &fakeTarget{name: "preview"}},
	}
	logger := slog.New(targetLogHandler{
		Handler: slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}),
		log:     log,
	})
	h.ctrl = New(h.manager,
		WithLogger(logger),
		WithEncoder(h.encoder),
		WithReaderFactory(h.readers.newReader),
	)
	t.Cleanup(func() {
		_ = h.ctrl.Close(context.Background())
	})
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
}

func (h *harness) startPreview(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.ctrl.ConfigurePreview(ctx, h.surface); err != nil {
		t.Fatalf("ConfigurePreview() error = %v", err)
	}
	if err := h.ctrl.StartPreview(ctx); err != nil {
		t.Fatalf("StartPreview() error = %v", err)
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want kind %s", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("KindOf(%v) = %q, want %q", err, got, want)
	}
}

// indexOf returns the position of call in calls, or -1.
func indexOf(calls []string, call string) int {
	return slices.Index(calls, call)
}
