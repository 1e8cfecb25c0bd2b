package simcam

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camops/internal/camera"
)

type sink struct {
	name string
	size camera.Size

	mu     sync.Mutex
	frames []camera.Frame
	refuse bool
}

func (s *sink) Name() string      { return s.name }
func (s *sink) Size() camera.Size { return s.size }

func (s *sink) Deliver(f camera.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DeviceIDs = []string{"back", "front"}
	cfg.FrameRate = 200
	cfg.Processed = []camera.Size{{Width: 64, Height: 48}}
	cfg.JPEG = []camera.Size{{Width: 32, Height: 24}}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func openDevice(t *testing.T, m *Manager, id string) *Device {
	t.Helper()
	d, err := m.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open(%q): %v", id, err)
	}
	t.Cleanup(func() { d.Close() })
	return d.(*Device)
}

func TestManager_Open(t *testing.T) {
	m := NewManager(testConfig())
	ctx := context.Background()

	ids, err := m.DeviceIDs(ctx)
	if err != nil || len(ids) != 2 || ids[0] != "back" {
		t.Fatalf("DeviceIDs() = %v, %v", ids, err)
	}

	d := openDevice(t, m, "back")
	if _, err := m.Open(ctx, "back"); !errors.Is(err, ErrDeviceInUse) {
		t.Errorf("second Open err = %v, want ErrDeviceInUse", err)
	}
	if _, err := m.Open(ctx, "side"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Open unknown err = %v, want ErrUnknownDevice", err)
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Device("back"); ok {
		t.Error("closed device still registered")
	}
	openDevice(t, m, "back")
}

func TestDevice_Capabilities(t *testing.T) {
	m := NewManager(testConfig())
	d := openDevice(t, m, "back")

	caps, err := d.Capabilities()
	if err != nil {
		t.Fatal(err)
	}
	if got := caps.Sizes(camera.CategoryJPEG); len(got) != 1 || got[0] != (camera.Size{Width: 32, Height: 24}) {
		t.Errorf("jpeg sizes = %v", got)
	}

	cfg := testConfig()
	cfg.NoCapabilities = true
	d2 := openDevice(t, NewManager(cfg), "back")
	if caps, err := d2.Capabilities(); err != nil || caps != nil {
		t.Errorf("Capabilities() = %v, %v, want nil, nil", caps, err)
	}
}

func TestDevice_RequestTargetsMustBeConfigured(t *testing.T) {
	d := openDevice(t, NewManager(testConfig()), "back")
	a := &sink{name: "a"}
	b := &sink{name: "b"}

	if err := d.ConfigureOutputs([]camera.Target{a}); err != nil {
		t.Fatal(err)
	}
	req, _ := d.CreateRequest(camera.PurposePreview)
	req.AddTarget(b)

	err := d.SubmitRepeating(req)
	if !errors.Is(err, ErrUnconfiguredTarget) {
		t.Fatalf("err = %v, want ErrUnconfiguredTarget", err)
	}
	var te *TargetError
	if !errors.As(err, &te) || te.Target != "b" {
		t.Errorf("TargetError = %+v", te)
	}
}

func TestDevice_RepeatingStreamsFrames(t *testing.T) {
	d := openDevice(t, NewManager(testConfig()), "back")
	preview := &sink{name: "preview", size: camera.Size{Width: 64, Height: 48}}

	if err := d.ConfigureOutputs([]camera.Target{preview}); err != nil {
		t.Fatal(err)
	}
	req, _ := d.CreateRequest(camera.PurposePreview)
	req.AddTarget(preview)
	if err := d.SubmitRepeating(req); err != nil {
		t.Fatal(err)
	}

	if err := d.ConfigureOutputs(nil); !errors.Is(err, ErrStreaming) {
		t.Errorf("ConfigureOutputs while streaming err = %v, want ErrStreaming", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for preview.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if preview.count() < 3 {
		t.Fatalf("got %d frames, want at least 3", preview.count())
	}

	if err := d.StopRepeating(); err != nil {
		t.Fatal(err)
	}
	if err := d.WaitUntilIdle(); err != nil {
		t.Fatal(err)
	}
	n := preview.count()
	time.Sleep(30 * time.Millisecond)
	if preview.count() != n {
		t.Error("frames delivered after StopRepeating + WaitUntilIdle")
	}

	preview.mu.Lock()
	f := preview.frames[0]
	preview.mu.Unlock()
	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		t.Fatalf("frame is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("frame bounds = %v, want 64x48", b)
	}
}

func TestDevice_SubmitOnceReportsResult(t *testing.T) {
	d := openDevice(t, NewManager(testConfig()), "back")
	reader := &sink{name: "jpeg", size: camera.Size{Width: 32, Height: 24}}
	if err := d.ConfigureOutputs([]camera.Target{reader}); err != nil {
		t.Fatal(err)
	}

	req, _ := d.CreateRequest(camera.PurposeStillCapture)
	req.AddTarget(reader)
	req.Set(camera.KeySensorSensitivity, 400)

	done := make(chan camera.CaptureResult, 1)
	err := d.SubmitOnce(req, camera.ResultFuncs{Completed: func(r camera.CaptureResult) { done <- r }})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-done:
		if r.RequestID != req.ID || r.Purpose != camera.PurposeStillCapture {
			t.Errorf("result = %+v", r)
		}
		if r.Settings[camera.KeySensorSensitivity] != 400 {
			t.Errorf("settings = %v", r.Settings)
		}
	case <-time.After(time.Second):
		t.Fatal("no capture result")
	}
	if reader.count() != 1 {
		t.Errorf("reader got %d frames, want 1", reader.count())
	}
}

func TestDevice_SubmitOnceDroppedFrameFails(t *testing.T) {
	d := openDevice(t, NewManager(testConfig()), "back")
	reader := &sink{name: "jpeg", refuse: true}
	d.ConfigureOutputs([]camera.Target{reader})

	req, _ := d.CreateRequest(camera.PurposeStillCapture)
	req.AddTarget(reader)

	failed := make(chan camera.CaptureFailure, 1)
	if err := d.SubmitOnce(req, camera.ResultFuncs{Failed: func(f camera.CaptureFailure) { failed <- f }}); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-failed:
		if f.RequestID != req.ID || f.Reason == nil {
			t.Errorf("failure = %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no capture failure")
	}
	if _, dropped := d.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDevice_FaultsAndClose(t *testing.T) {
	m := NewManager(testConfig())
	d := openDevice(t, m, "back")

	d.InjectFault(errors.New("sensor overheated"))
	select {
	case err := <-d.Faults():
		if err == nil || err.Error() != "sensor overheated" {
			t.Errorf("fault = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no fault delivered")
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-d.Faults(); ok {
		t.Error("faults channel should be closed after Close")
	}
	if _, err := d.CreateRequest(camera.PurposePreview); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("CreateRequest after Close err = %v, want ErrDeviceClosed", err)
	}
	d.InjectFault(errors.New("ignored"))
}

func TestDevice_FrameSizeFallsBack(t *testing.T) {
	d := openDevice(t, NewManager(testConfig()), "back")
	if got := d.frameSize(&sink{name: "unsized"}); got != (camera.Size{Width: 64, Height: 48}) {
		t.Errorf("frameSize = %v, want first processed size", got)
	}
}
