package surface

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smazurov/camops/internal/camera"
)

func TestSurface_SetFixedSizeFiltersFrames(t *testing.T) {
	s := New("")
	if s.Name() != "preview" {
		t.Errorf("Name() = %q, want preview", s.Name())
	}

	small := camera.Size{Width: 640, Height: 480}
	big := camera.Size{Width: 1920, Height: 1080}

	if !s.Deliver(camera.Frame{Size: small, Sequence: 1}) {
		t.Fatal("unsized surface should accept any frame")
	}

	s.SetFixedSize(big.Width, big.Height)
	if _, ok := s.Latest(); ok {
		t.Error("frame of old size should be discarded after resize")
	}
	if s.Size() != big {
		t.Errorf("Size() = %v, want %v", s.Size(), big)
	}

	tests := []struct {
		size camera.Size
		want bool
	}{
		{small, false},
		{big, true},
	}
	for _, tt := range tests {
		if got := s.Deliver(camera.Frame{Size: tt.size}); got != tt.want {
			t.Errorf("Deliver(%v) = %v, want %v", tt.size, got, tt.want)
		}
	}

	frames, rejected := s.Stats()
	if frames != 2 || rejected != 1 {
		t.Errorf("Stats() = %d/%d, want 2/1", frames, rejected)
	}
}

func TestSurface_LatestWins(t *testing.T) {
	s := New("preview")
	for seq := uint64(1); seq <= 3; seq++ {
		s.Deliver(camera.Frame{Sequence: seq})
	}
	f, ok := s.Latest()
	if !ok || f.Sequence != 3 {
		t.Errorf("Latest() = %d, %v, want 3, true", f.Sequence, ok)
	}
}

func TestSurface_Next(t *testing.T) {
	s := New("preview")

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Deliver(camera.Frame{Sequence: 7})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", f.Sequence)
	}
}

func TestSurface_NextCancelled(t *testing.T) {
	s := New("preview")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
