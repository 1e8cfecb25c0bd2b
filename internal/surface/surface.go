// Package surface provides the preview target: a drawable that keeps only
// the most recent frame written by the device.
package surface

import (
	"context"
	"sync"

	"github.com/smazurov/camops/internal/camera"
)

// Surface holds the latest preview frame. It is safe for concurrent use.
type Surface struct {
	name string

	mu       sync.Mutex
	size     camera.Size
	latest   *camera.Frame
	frames   uint64
	rejected uint64
	// changed is closed and replaced on every accepted frame.
	changed chan struct{}
}

// New creates a surface named name. Its size is unset until SetFixedSize.
func New(name string) *Surface {
	if name == "" {
		name = "preview"
	}
	return &Surface{name: name, changed: make(chan struct{})}
}

// Name implements camera.Target.
func (s *Surface) Name() string {
	return s.name
}

// Target returns the surface itself.
func (s *Surface) Target() camera.Target {
	return s
}

// SetFixedSize sets the buffer size. Frames of any other size are rejected
// from then on, and the current frame is discarded if it no longer fits.
func (s *Surface) SetFixedSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = camera.Size{Width: width, Height: height}
	if s.latest != nil && s.latest.Size != s.size {
		s.latest = nil
	}
}

// Size returns the fixed size, zero when unset.
func (s *Surface) Size() camera.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Deliver replaces the current frame. It implements camera.FrameSink.
func (s *Surface) Deliver(frame camera.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size != (camera.Size{}) && frame.Size != s.size {
		s.rejected++
		return false
	}
	s.latest = &frame
	s.frames++
	close(s.changed)
	s.changed = make(chan struct{})
	return true
}

// Latest returns the current frame, if any.
func (s *Surface) Latest() (camera.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return camera.Frame{}, false
	}
	return *s.latest, true
}

// Stats returns how many frames were accepted and rejected.
func (s *Surface) Stats() (frames, rejected uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.rejected
}

// Next blocks until a frame newer than the current one arrives or ctx ends.
func (s *Surface) Next(ctx context.Context) (camera.Frame, error) {
	s.mu.Lock()
	changed := s.changed
	s.mu.Unlock()

	select {
	case <-changed:
	case <-ctx.Done():
		return camera.Frame{}, ctx.Err()
	}

	frame, _ := s.Latest()
	return frame, nil
}
