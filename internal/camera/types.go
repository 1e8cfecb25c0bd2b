package camera

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Status is the controller status. Values are ordered so that anything below
// StatusOK blocks device operations.
type Status int

// Controller statuses.
const (
	StatusError Status = iota
	StatusUninitialized
	StatusOK
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusUninitialized:
		return "uninitialized"
	case StatusOK:
		return "ok"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Size is an output resolution in pixels.
type Size struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WIDTHxHEIGHT".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Size{}, fmt.Errorf("invalid width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Size{}, fmt.Errorf("invalid height in %q", s)
	}
	return Size{Width: width, Height: height}, nil
}

// ParseSizes parses a comma separated list of sizes. Empty entries are skipped.
func ParseSizes(list string) ([]Size, error) {
	var sizes []Size
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		size, err := ParseSize(part)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// Contains reports whether size is a member of sizes.
func Contains(sizes []Size, size Size) bool {
	return slices.Contains(sizes, size)
}

// Category selects which capability list a size is drawn from.
type Category int

// Capability categories.
const (
	CategoryProcessed Category = iota // preview and recording outputs
	CategoryJPEG
)

func (c Category) String() string {
	if c == CategoryJPEG {
		return "jpeg"
	}
	return "processed"
}

// Capabilities is the per-session snapshot of what the open device reports.
// It is fetched once and never mutated.
type Capabilities struct {
	processed []Size
	jpeg      []Size
}

// NewCapabilities builds a snapshot. The slices are copied.
func NewCapabilities(processed, jpeg []Size) *Capabilities {
	return &Capabilities{
		processed: slices.Clone(processed),
		jpeg:      slices.Clone(jpeg),
	}
}

// Sizes returns the supported output sizes for a category. A nil snapshot has no sizes.
func (c *Capabilities) Sizes(category Category) []Size {
	if c == nil {
		return nil
	}
	if category == CategoryJPEG {
		return slices.Clone(c.jpeg)
	}
	return slices.Clone(c.processed)
}

// Purpose is the template a capture request is created from.
type Purpose int

// Request purposes.
const (
	PurposePreview Purpose = iota
	PurposeStillCapture
	PurposeRecord
)

func (p Purpose) String() string {
	switch p {
	case PurposePreview:
		return "preview"
	case PurposeStillCapture:
		return "still_capture"
	case PurposeRecord:
		return "record"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Format is the pixel format of an image reader.
type Format int

// Image formats.
const (
	FormatJPEG Format = iota
)

// Target is an opaque sink the device writes frames into.
type Target interface {
	Name() string
}

// Frame is one unit of image data produced by a device for a target.
type Frame struct {
	Data      []byte
	Size      Size
	Sequence  uint64
	Timestamp time.Time
}

// FrameSink is implemented by targets that accept frames from a device.
// Deliver must not block; it returns false when the frame was dropped.
type FrameSink interface {
	Target
	Deliver(frame Frame) bool
}

// ManualControls overrides the automatic 3A routines of a request.
type ManualControls struct {
	Enabled       bool  `json:"enabled" toml:"enabled" yaml:"enabled"`
	Sensitivity   int32 `json:"sensitivity" toml:"sensitivity" yaml:"sensitivity"`
	FrameDuration int64 `json:"frame_duration_ns" toml:"frame_duration_ns" yaml:"frame_duration_ns"`
	ExposureTime  int64 `json:"exposure_time_ns" toml:"exposure_time_ns" yaml:"exposure_time_ns"`
}

// RecordingSession describes the active or last configured recording.
type RecordingSession struct {
	ID                 string
	Size               Size
	UseHardwareEncoder bool
	Bitrate            int
	Running            bool
}
