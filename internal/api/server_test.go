package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/metrics"
	"github.com/smazurov/camops/internal/surface"
)

// fakeCamera implements Camera. errs maps an operation name to the error it returns.
type fakeCamera struct {
	mu       sync.Mutex
	status   camera.Status
	devices  []string
	open     string
	caps     *camera.Capabilities
	rec      camera.RecordingSession
	controls *camera.ManualControls
	image    []byte
	failure  error
	errs     map[string]error
	calls    []string
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		status:  camera.StatusOK,
		devices: []string{"cam0", "cam1"},
		caps: camera.NewCapabilities(
			[]camera.Size{{Width: 640, Height: 480}, {Width: 1920, Height: 1080}},
			[]camera.Size{{Width: 640, Height: 480}},
		),
		image: []byte("jpeg-bytes"),
		errs:  map[string]error{},
	}
}

func (f *fakeCamera) call(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.errs[op]
}

func (f *fakeCamera) Status() camera.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeCamera) ListDevices(_ context.Context) ([]string, error) {
	return f.devices, f.call("list_devices")
}

func (f *fakeCamera) DeviceID(_ context.Context) (string, error) {
	return f.open, f.call("device_id")
}

func (f *fakeCamera) OpenDevice(_ context.Context, id string) error {
	if err := f.call("open_device"); err != nil {
		return err
	}
	f.open = id
	return nil
}

func (f *fakeCamera) CloseDevice(_ context.Context) error {
	if err := f.call("close_device"); err != nil {
		return err
	}
	f.open = ""
	return nil
}

func (f *fakeCamera) Capabilities(_ context.Context) (*camera.Capabilities, error) {
	return f.caps, f.call("capabilities")
}

func (f *fakeCamera) ConfigurePreview(_ context.Context, s camera.Surface) error {
	if err := f.call("configure_preview"); err != nil {
		return err
	}
	s.SetFixedSize(640, 480)
	f.open = "cam0"
	return nil
}

func (f *fakeCamera) StartPreview(_ context.Context) error {
	return f.call("start_preview")
}

func (f *fakeCamera) UpdatePreview(_ context.Context, controls *camera.ManualControls) error {
	f.controls = controls
	return f.call("update_preview")
}

func (f *fakeCamera) CaptureStill(_ context.Context, listener camera.ImageListener, results camera.ResultListener, _ *camera.ManualControls) error {
	if err := f.call("capture_still"); err != nil {
		return err
	}
	f.open = "cam0"
	go func() {
		if f.failure != nil {
			results.OnCaptureFailed(camera.CaptureFailure{RequestID: "req-1", Reason: f.failure})
			return
		}
		img := camera.NewImage(camera.Frame{Data: f.image, Size: camera.Size{Width: 640, Height: 480}}, camera.FormatJPEG, nil)
		listener(img)
		img.Close()
		results.OnCaptureCompleted(camera.CaptureResult{RequestID: "req-1", FrameNumber: 7})
	}()
	return nil
}

func (f *fakeCamera) StartRecording(_ context.Context, hw bool) error {
	if err := f.call("start_recording"); err != nil {
		return err
	}
	f.rec = camera.RecordingSession{ID: "sess-1", Size: camera.Size{Width: 1920, Height: 1080}, Bitrate: 10000000, UseHardwareEncoder: hw, Running: true}
	return nil
}

func (f *fakeCamera) StopRecording(_ context.Context) error {
	if err := f.call("stop_recording"); err != nil {
		return err
	}
	f.rec.Running = false
	return nil
}

func (f *fakeCamera) Recording(_ context.Context) (camera.RecordingSession, error) {
	return f.rec, f.call("recording")
}

type staticOutput string

func (o staticOutput) Output() string { return string(o) }

type testEnv struct {
	cam     *fakeCamera
	preview *surface.Surface
	bus     *events.Bus
	server  *httptest.Server
}

func newTestEnv(t *testing.T, withAuth bool) *testEnv {
	t.Helper()
	env := &testEnv{
		cam:     newFakeCamera(),
		preview: surface.New("preview"),
		bus:     events.New(),
	}
	opts := &Options{
		Camera:         env.cam,
		Preview:        env.preview,
		Recorder:       staticOutput("recordings/rec-1.mp4"),
		EventBus:       env.bus,
		Metrics:        metrics.New(),
		CaptureTimeout: time.Second,
	}
	if withAuth {
		opts.AuthUsername = "test"
		opts.AuthPassword = "test"
	}
	env.server = httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)

	resp, body := env.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", body)
	}

	env.cam.mu.Lock()
	env.cam.status = camera.StatusError
	env.cam.mu.Unlock()

	_, body = env.do(t, http.MethodGet, "/api/health", "")
	if !strings.Contains(string(body), `"status":"degraded"`) {
		t.Errorf("expected degraded health, got %s", body)
	}
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, true)

	resp, _ := env.do(t, http.MethodGet, "/api/status", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/status", nil)
	req.SetBasicAuth("test", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong password, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, env.server.URL+"/api/status", nil)
	req.SetBasicAuth("test", "test")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with credentials, got %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, false)
	env.cam.open = "cam0"
	env.cam.rec.Running = true

	resp, body := env.do(t, http.MethodGet, "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var data models.StatusData
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Status != "ok" || data.DeviceID != "cam0" || !data.Recording {
		t.Errorf("unexpected status %+v", data)
	}
	if data.Metrics == nil {
		t.Error("expected metrics snapshot")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		kind camera.Kind
		want int
	}{
		{camera.KindNotReady, http.StatusConflict},
		{camera.KindInvalidState, http.StatusConflict},
		{camera.KindNoDevicesAvailable, http.StatusServiceUnavailable},
		{camera.KindServiceUnavailable, http.StatusServiceUnavailable},
		{camera.KindAccess, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t, false)
			env.cam.errs["open_device"] = &camera.Error{Kind: tt.kind, Op: "open_device", Message: "boom"}

			resp, body := env.do(t, http.MethodPost, "/api/devices/cam0/open", "")
			if resp.StatusCode != tt.want {
				t.Errorf("got %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}

	if err := mapCameraError(errors.New("plain")); err == nil {
		t.Error("expected error for plain error")
	}
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/api/devices/cam1/open", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: expected 200, got %d: %s", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, "/api/devices", "")
	var list models.DeviceListData
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 2 || list.Open != "cam1" {
		t.Errorf("unexpected device list %+v", list)
	}

	_, body = env.do(t, http.MethodGet, "/api/capabilities", "")
	var caps models.CapabilitiesData
	if err := json.Unmarshal(body, &caps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(caps.Processed) != 2 || len(caps.JPEG) != 1 || caps.DeviceID != "cam1" {
		t.Errorf("unexpected capabilities %+v", caps)
	}

	resp, body = env.do(t, http.MethodPost, "/api/devices/close", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "cam1") {
		t.Errorf("close: got %d %s", resp.StatusCode, body)
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, false)

	resp, _ := env.do(t, http.MethodGet, "/api/preview/frame", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before any frame, got %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/api/preview", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start preview: got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"width":640`) {
		t.Errorf("expected preview size in response: %s", body)
	}

	env.preview.Deliver(camera.Frame{Data: []byte("frame"), Size: camera.Size{Width: 640, Height: 480}})
	resp, body = env.do(t, http.MethodGet, "/api/preview/frame", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("frame: got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/jpeg" || string(body) != "frame" {
		t.Errorf("unexpected frame response %q %q", resp.Header.Get("Content-Type"), body)
	}

	resp, body = env.do(t, http.MethodPut, "/api/preview/controls", `{"enabled":true,"sensitivity":400}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("controls: got %d: %s", resp.StatusCode, body)
	}
	if env.cam.controls == nil || !env.cam.controls.Enabled || env.cam.controls.Sensitivity != 400 {
		t.Errorf("controls not passed through: %+v", env.cam.controls)
	}
}

func TestCapture(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/api/capture", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var data models.CaptureData
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	img, err := base64.StdEncoding.DecodeString(data.Image)
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	if string(img) != "jpeg-bytes" || data.Width != 640 || data.DeviceID != "cam0" {
		t.Errorf("unexpected capture %+v", data)
	}
	if data.RequestID != "req-1" || data.FrameNumber != 7 {
		t.Errorf("expected capture result, got %+v", data)
	}
}

func TestCaptureFailed(t *testing.T) {
	env := newTestEnv(t, false)
	env.cam.failure = errors.New("sensor timeout")

	resp, body := env.do(t, http.MethodPost, "/api/capture", `{}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", resp.StatusCode, body)
	}
}

func TestRecording(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/api/recording/start", `{"hardware":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: got %d: %s", resp.StatusCode, body)
	}
	var data models.RecordingData
	if err := json.Unmarshal(body, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !data.Running || !data.Hardware || data.Bitrate != 10000000 || data.Output != "recordings/rec-1.mp4" {
		t.Errorf("unexpected recording %+v", data)
	}

	resp, body = env.do(t, http.MethodPost, "/api/recording/stop", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"running":false`) {
		t.Errorf("stop: got %d %s", resp.StatusCode, body)
	}

	env.cam.errs["stop_recording"] = &camera.Error{Kind: camera.KindInvalidState, Op: "stop_recording", Message: "recording not running"}
	resp, _ = env.do(t, http.MethodPost, "/api/recording/stop", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop: expected 409, got %d", resp.StatusCode)
	}
}

func TestOptionsAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/options", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "wallclock_ts") {
		t.Errorf("options: got %d %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("metrics: got %d", resp.StatusCode)
	}
}

func TestSSEEvents(t *testing.T) {
	env := newTestEnv(t, true)

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", env.server.URL, credentials))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messages := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				messages <- line
			}
		}
	}()

	select {
	case msg := <-messages:
		if !strings.Contains(msg, `"reason":"connected"`) {
			t.Errorf("expected initial status event, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial SSE message")
	}

	env.bus.Publish(events.DeviceOpenedEvent{DeviceID: "cam7", Timestamp: "2025-01-27T10:30:00Z"})

	select {
	case msg := <-messages:
		if !strings.Contains(msg, "cam7") {
			t.Errorf("expected device event, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for device event")
	}
}

func TestSSEAuthFailure(t *testing.T) {
	env := newTestEnv(t, true)

	resp, err := http.Get(env.server.URL + "/api/events")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUIMountedAtRoot(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("diagnostic page"))
	})
	srv := httptest.NewServer(NewServer(&Options{
		Camera:  newFakeCamera(),
		Preview: surface.New("preview"),
		UI:      page,
	}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "diagnostic page" {
		t.Errorf("GET / = %q", body)
	}

	resp, err = http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/health = %d, want 200", resp.StatusCode)
	}
}
