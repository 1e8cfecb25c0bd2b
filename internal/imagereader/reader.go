// Package imagereader implements a bounded image buffer that a camera device
// writes still frames into.
package imagereader

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/logging"
)

var (
	// ErrNoImage is returned by AcquireNextImage when nothing is queued.
	ErrNoImage = errors.New("no image available")
	// ErrMaxImages is returned when every buffer is held by the caller.
	ErrMaxImages = errors.New("maximum images acquired")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("image reader closed")
)

// Reader holds up to capacity frames, counting both queued frames and images
// acquired but not yet closed. Frames arriving while it is full are dropped.
// The on-available callback runs on the reader's own goroutine, once per
// delivered frame.
type Reader struct {
	size     camera.Size
	format   camera.Format
	capacity int
	name     string
	logger   *slog.Logger

	mu          sync.Mutex
	queue       []camera.Frame
	outstanding int
	onAvailable func(camera.ImageReader)
	closed      bool
	dropped     uint64
	// unnotified counts delivered frames the callback has not been run for.
	unnotified int

	ready chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// New creates a reader and starts its delivery goroutine.
func New(size camera.Size, format camera.Format, capacity int, logger *slog.Logger) (*Reader, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("image reader capacity must be positive, got %d", capacity)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid image reader size %s", size)
	}
	if logger == nil {
		logger = logging.GetLogger("imagereader")
	}

	r := &Reader{
		size:     size,
		format:   format,
		capacity: capacity,
		name:     "jpeg-reader-" + size.String(),
		logger:   logger.With("reader", "jpeg-reader-"+size.String()),
		ready:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.deliver()
	return r, nil
}

// Factory returns a camera.ReaderFactory building Readers that log to logger.
func Factory(logger *slog.Logger) camera.ReaderFactory {
	return func(size camera.Size, format camera.Format, capacity int) (camera.ImageReader, error) {
		return New(size, format, capacity, logger)
	}
}

// Name implements camera.Target.
func (r *Reader) Name() string {
	return r.name
}

// Size returns the frame size the reader accepts.
func (r *Reader) Size() camera.Size {
	return r.size
}

// Target returns the reader itself; it is the sink devices write into.
func (r *Reader) Target() camera.Target {
	return r
}

// Dropped returns how many frames were refused.
func (r *Reader) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Deliver queues frame. It never blocks and returns false when the frame was
// dropped because the reader is full, closed, or the size does not match.
func (r *Reader) Deliver(frame camera.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return false
	case frame.Size != r.size:
		r.dropped++
		r.logger.Warn("Dropping frame with unexpected size", "size", frame.Size.String())
		return false
	case len(r.queue)+r.outstanding >= r.capacity:
		r.dropped++
		r.logger.Debug("Dropping frame, reader full", "sequence", frame.Sequence)
		return false
	}

	r.queue = append(r.queue, frame)
	r.unnotified++
	select {
	case r.ready <- struct{}{}:
	default:
	}
	return true
}

// SetOnImageAvailable replaces the callback. A nil fn disables notification;
// frames stay queued until acquired.
func (r *Reader) SetOnImageAvailable(fn func(camera.ImageReader)) {
	r.mu.Lock()
	r.onAvailable = fn
	r.mu.Unlock()
}

// AcquireNextImage pops the oldest queued frame. The image must be closed to
// free its buffer.
func (r *Reader) AcquireNextImage() (*camera.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if len(r.queue) == 0 {
		return nil, ErrNoImage
	}
	if r.outstanding >= r.capacity {
		return nil, ErrMaxImages
	}

	frame := r.queue[0]
	r.queue = r.queue[1:]
	r.outstanding++
	return camera.NewImage(frame, r.format, r.release), nil
}

func (r *Reader) release() {
	r.mu.Lock()
	if r.outstanding > 0 {
		r.outstanding--
	}
	r.mu.Unlock()
}

// Close drops queued frames and stops the delivery goroutine. Images already
// acquired remain valid. Close is idempotent and must not be called from
// the on-available callback.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.queue = nil
	r.mu.Unlock()

	close(r.stop)
	<-r.done
	r.logger.Debug("Image reader closed")
	return nil
}

func (r *Reader) deliver() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case <-r.ready:
			r.mu.Lock()
			fn, n := r.onAvailable, r.unnotified
			r.unnotified = 0
			r.mu.Unlock()
			if fn == nil {
				continue
			}
			for range n {
				fn(r)
			}
		}
	}
}
