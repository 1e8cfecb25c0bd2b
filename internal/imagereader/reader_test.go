package imagereader

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camops/internal/camera"
)

var testSize = camera.Size{Width: 640, Height: 480}

func newTestReader(t *testing.T, capacity int) *Reader {
	t.Helper()
	r, err := New(testSize, camera.FormatJPEG, capacity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func frame(seq uint64) camera.Frame {
	return camera.Frame{Data: []byte{0xff, 0xd8, byte(seq)}, Size: testSize, Sequence: seq, Timestamp: time.Now()}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		size     camera.Size
		capacity int
	}{
		{"zero capacity", testSize, 0},
		{"zero size", camera.Size{}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.size, camera.FormatJPEG, tt.capacity, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReader_CapacityBoundsQueuedAndAcquired(t *testing.T) {
	r := newTestReader(t, 2)

	if !r.Deliver(frame(1)) || !r.Deliver(frame(2)) {
		t.Fatal("first two frames should be accepted")
	}
	if r.Deliver(frame(3)) {
		t.Fatal("third frame should be dropped while full")
	}

	img, err := r.AcquireNextImage()
	if err != nil {
		t.Fatalf("AcquireNextImage: %v", err)
	}
	if img.Data[2] != 1 {
		t.Errorf("got frame %d, want oldest frame 1", img.Data[2])
	}
	// Still full: one queued, one held by the caller.
	if r.Deliver(frame(4)) {
		t.Fatal("frame accepted while acquired image is still open")
	}

	img.Close()
	img.Close()
	if !r.Deliver(frame(5)) {
		t.Fatal("frame should be accepted after image closed")
	}
	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestReader_AcquireEmpty(t *testing.T) {
	r := newTestReader(t, 2)
	if _, err := r.AcquireNextImage(); !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestReader_RejectsWrongSize(t *testing.T) {
	r := newTestReader(t, 2)
	f := frame(1)
	f.Size = camera.Size{Width: 1920, Height: 1080}
	if r.Deliver(f) {
		t.Error("frame with wrong size accepted")
	}
}

func TestReader_OnImageAvailable(t *testing.T) {
	r := newTestReader(t, 2)

	got := make(chan uint64, 4)
	r.SetOnImageAvailable(func(ir camera.ImageReader) {
		img, err := ir.AcquireNextImage()
		if err != nil {
			t.Errorf("AcquireNextImage in callback: %v", err)
			return
		}
		defer img.Close()
		got <- uint64(img.Data[2])
	})

	for seq := uint64(1); seq <= 3; seq++ {
		for !r.Deliver(frame(seq)) {
			time.Sleep(time.Millisecond)
		}
	}

	for want := uint64(1); want <= 3; want++ {
		select {
		case seq := <-got:
			if seq != want {
				t.Errorf("callback got frame %d, want %d", seq, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for frame %d", want)
		}
	}
}

func TestReader_Close(t *testing.T) {
	r := newTestReader(t, 2)
	r.Deliver(frame(1))

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if r.Deliver(frame(2)) {
		t.Error("Deliver accepted after Close")
	}
	if _, err := r.AcquireNextImage(); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestReader_ConcurrentDelivery(t *testing.T) {
	r := newTestReader(t, 2)

	var mu sync.Mutex
	received := 0
	r.SetOnImageAvailable(func(ir camera.ImageReader) {
		img, err := ir.AcquireNextImage()
		if err != nil {
			return
		}
		img.Close()
		mu.Lock()
		received++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	accepted := make(chan bool, 400)
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				accepted <- r.Deliver(frame(uint64(i*100 + j)))
			}
		}()
	}
	wg.Wait()
	close(accepted)

	want := 0
	for ok := range accepted {
		if ok {
			want++
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := received
		mu.Unlock()
		if n == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("received %d images, want %d", n, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFactory(t *testing.T) {
	factory := Factory(nil)
	ir, err := factory(testSize, camera.FormatJPEG, camera.StillReaderCapacity)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer ir.Close()

	if ir.Size() != testSize {
		t.Errorf("Size() = %v, want %v", ir.Size(), testSize)
	}
	if _, ok := ir.Target().(camera.FrameSink); !ok {
		t.Error("reader target should accept frames")
	}
}
