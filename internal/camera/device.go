package camera

import (
	"context"
	"sync"
	"time"
)

// Manager enumerates and opens devices. It stands in for the platform camera service.
type Manager interface {
	DeviceIDs(ctx context.Context) ([]string, error)
	Open(ctx context.Context, id string) (Device, error)
}

// Device is an open camera. Calls are issued only from the controller worker.
type Device interface {
	ID() string
	// Capabilities returns the device snapshot, or nil when the device reports none.
	Capabilities() (*Capabilities, error)
	ConfigureOutputs(targets []Target) error
	CreateRequest(purpose Purpose) (*Request, error)
	SubmitRepeating(req *Request) error
	SubmitOnce(req *Request, results ResultListener) error
	StopRepeating() error
	// WaitUntilIdle blocks until all in-flight work from the previous configuration is done.
	WaitUntilIdle() error
	Close() error
}

// FaultReporter is optionally implemented by devices that report fatal errors
// asynchronously. The controller moves to StatusError when one arrives.
type FaultReporter interface {
	Faults() <-chan error
}

// ImageReader is a bounded buffer of captured images exposed as a single target.
type ImageReader interface {
	Size() Size
	Target() Target
	AcquireNextImage() (*Image, error)
	SetOnImageAvailable(fn func(ImageReader))
	Close() error
}

// ReaderFactory creates image readers.
type ReaderFactory func(size Size, format Format, capacity int) (ImageReader, error)

// Surface is the UI drawable the preview renders into.
type Surface interface {
	SetFixedSize(width, height int)
	Target() Target
}

// Encoder is the recording pipeline. Target is valid between Configure and Stop.
type Encoder interface {
	Configure(size Size, useHardwareEncoder bool, bitrate int) error
	Start() error
	Stop() error
	Target() Target
}

// Image is a frame handed to a capture listener. The listener must not retain
// it past the callback; the controller closes it afterwards.
type Image struct {
	Data      []byte
	Size      Size
	Format    Format
	Timestamp time.Time

	once    sync.Once
	release func()
}

// NewImage wraps a frame. release is called once when the image is closed.
func NewImage(frame Frame, format Format, release func()) *Image {
	return &Image{
		Data:      frame.Data,
		Size:      frame.Size,
		Format:    format,
		Timestamp: frame.Timestamp,
		release:   release,
	}
}

// Close returns the underlying buffer to its reader.
func (i *Image) Close() {
	i.once.Do(func() {
		if i.release != nil {
			i.release()
		}
	})
}

// ImageListener receives captured still images.
type ImageListener func(img *Image)

// CaptureResult is reported by the device after a one-shot capture completes.
type CaptureResult struct {
	RequestID   string
	Purpose     Purpose
	Settings    map[Key]int64
	FrameNumber uint64
	Timestamp   time.Time
}

// CaptureFailure is reported when a one-shot capture could not be completed.
type CaptureFailure struct {
	RequestID string
	Reason    error
}

// ResultListener receives capture results.
type ResultListener interface {
	OnCaptureCompleted(result CaptureResult)
	OnCaptureFailed(failure CaptureFailure)
}

// ResultFuncs adapts plain functions to ResultListener. Nil fields are ignored.
type ResultFuncs struct {
	Completed func(CaptureResult)
	Failed    func(CaptureFailure)
}

// OnCaptureCompleted implements ResultListener.
func (f ResultFuncs) OnCaptureCompleted(result CaptureResult) {
	if f.Completed != nil {
		f.Completed(result)
	}
}

// OnCaptureFailed implements ResultListener.
func (f ResultFuncs) OnCaptureFailed(failure CaptureFailure) {
	if f.Failed != nil {
		f.Failed(failure)
	}
}
