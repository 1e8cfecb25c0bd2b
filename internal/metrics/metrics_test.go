package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/camops/internal/camera"
)

func TestCollector_ObserveOperation(t *testing.T) {
	c := New()

	c.ObserveOperation("open_device", "", 5*time.Millisecond)
	c.ObserveOperation("open_device", camera.KindInvalidState, time.Millisecond)
	c.ObserveOperation("start_preview", "", time.Millisecond)

	if got := testutil.ToFloat64(c.operations.WithLabelValues("open_device", "ok")); got != 1 {
		t.Errorf("open_device ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.operations.WithLabelValues("open_device", "INVALID_STATE")); got != 1 {
		t.Errorf("open_device INVALID_STATE = %v, want 1", got)
	}

	snap := c.Snapshot()
	if snap.Operations["open_device"] != 2 || snap.Failures["open_device"] != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Operations["start_preview"] != 1 || snap.Failures["start_preview"] != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestCollector_StatusAndRecording(t *testing.T) {
	c := New()

	if got := c.Snapshot().Status; got != "uninitialized" {
		t.Errorf("initial status = %q, want uninitialized", got)
	}

	c.SetStatus(camera.StatusOK)
	c.SetRecording(true)
	if got := testutil.ToFloat64(c.status); got != 2 {
		t.Errorf("status gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.recording); got != 1 {
		t.Errorf("recording gauge = %v, want 1", got)
	}

	c.SetStatus(camera.StatusError)
	c.SetRecording(false)
	snap := c.Snapshot()
	if snap.Status != "error" || snap.Recording {
		t.Errorf("snapshot = %+v, want error/not recording", snap)
	}
}

func TestCollector_RecorderFrames(t *testing.T) {
	c := New()
	c.ObserveFrame(false)
	c.ObserveFrame(false)
	c.ObserveFrame(true)
	c.SetEncodeProgress(29.97, 1.01)

	snap := c.Snapshot()
	if snap.FramesWritten != 2 || snap.FramesDropped != 1 {
		t.Errorf("frames = %d/%d, want 2/1", snap.FramesWritten, snap.FramesDropped)
	}
	if snap.EncodeFPS != 29.97 || snap.EncodeSpeed != 1.01 {
		t.Errorf("progress = %v/%v", snap.EncodeFPS, snap.EncodeSpeed)
	}
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := New()
	c.ObserveOperation("capture_still", "", 0)

	snap := c.Snapshot()
	snap.Operations["capture_still"] = 99

	if got := c.Snapshot().Operations["capture_still"]; got != 1 {
		t.Errorf("collector state modified through snapshot, got %d", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveOperation("list_devices", "", time.Millisecond)
	c.SetStatus(camera.StatusOK)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`camops_camera_operations_total{op="list_devices",result="ok"} 1`,
		"camops_camera_status 2",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollector_Concurrent(_ *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.ObserveOperation("update_preview", "", time.Microsecond)
				c.ObserveFrame(false)
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()
}
