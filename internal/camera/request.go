package camera

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Key identifies a request metadata entry.
type Key string

// Request metadata keys.
const (
	KeyControlMode         Key = "control.mode"
	KeySensorSensitivity   Key = "sensor.sensitivity"
	KeySensorFrameDuration Key = "sensor.frame_duration"
	KeySensorExposureTime  Key = "sensor.exposure_time"
)

// Values for KeyControlMode.
const (
	ControlModeOff  int64 = 0 // 3A disabled, manual sensor values apply
	ControlModeAuto int64 = 1
)

// Request is a mutable capture request draft. Drafts are only touched from
// the controller worker, so they carry no locking.
type Request struct {
	ID       string
	Purpose  Purpose
	settings map[Key]int64
	targets  []Target
}

// NewRequest creates an empty draft for purpose. Devices use it to build
// their template requests.
func NewRequest(purpose Purpose) *Request {
	return &Request{
		ID:       uuid.NewString(),
		Purpose:  purpose,
		settings: make(map[Key]int64),
	}
}

// Set stores a metadata value.
func (r *Request) Set(key Key, value int64) {
	r.settings[key] = value
}

// Get returns a metadata value.
func (r *Request) Get(key Key) (int64, bool) {
	v, ok := r.settings[key]
	return v, ok
}

// Settings returns a copy of all metadata.
func (r *Request) Settings() map[Key]int64 {
	return maps.Clone(r.settings)
}

// AddTarget attaches an output target. Adding a target twice is a no-op.
func (r *Request) AddTarget(t Target) {
	if t == nil || slices.Contains(r.targets, t) {
		return
	}
	r.targets = append(r.targets, t)
}

// RemoveTarget detaches an output target.
func (r *Request) RemoveTarget(t Target) {
	r.targets = slices.DeleteFunc(r.targets, func(x Target) bool { return x == t })
}

// HasTarget reports whether t is attached.
func (r *Request) HasTarget(t Target) bool {
	return slices.Contains(r.targets, t)
}

// Targets returns the attached targets in attach order.
func (r *Request) Targets() []Target {
	return slices.Clone(r.targets)
}

// BuildRequest creates a draft from the device template for purpose and
// attaches every given target.
func BuildRequest(device Device, purpose Purpose, targets ...Target) (*Request, error) {
	req, err := device.CreateRequest(purpose)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		req.AddTarget(t)
	}
	return req, nil
}

// ApplyManualControls patches request metadata. A nil controls leaves the
// request alone; disabled controls only switch 3A back to auto.
func ApplyManualControls(req *Request, controls *ManualControls) {
	if controls == nil {
		return
	}
	if !controls.Enabled {
		req.Set(KeyControlMode, ControlModeAuto)
		return
	}
	req.Set(KeyControlMode, ControlModeOff)
	req.Set(KeySensorSensitivity, int64(controls.Sensitivity))
	req.Set(KeySensorFrameDuration, controls.FrameDuration)
	req.Set(KeySensorExposureTime, controls.ExposureTime)
}
