package events

// Event type constants for kelindar/event.
const (
	TypeStatusChanged uint32 = iota + 1
	TypeDeviceOpened
	TypeDeviceClosed
	TypePreviewStarted
	TypePreviewUpdated
	TypeRecordingStarted
	TypeRecordingStopped
	TypeCaptureCompleted
	TypeCaptureFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StatusChangedEvent is published when the controller status changes.
type StatusChangedEvent struct {
	Status    string `json:"status" example:"ok" doc:"New controller status"`
	Previous  string `json:"previous" example:"uninitialized" doc:"Previous controller status"`
	Reason    string `json:"reason" example:"initialized" doc:"Why the status changed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusChangedEvent.
func (e StatusChangedEvent) Type() uint32 { return TypeStatusChanged }

// DeviceOpenedEvent is published after a device was opened.
type DeviceOpenedEvent struct {
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceOpenedEvent.
func (e DeviceOpenedEvent) Type() uint32 { return TypeDeviceOpened }

// DeviceClosedEvent is published when the open device was released.
type DeviceClosedEvent struct {
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceClosedEvent.
func (e DeviceClosedEvent) Type() uint32 { return TypeDeviceClosed }

// PreviewStartedEvent is published when the preview stream is running.
type PreviewStartedEvent struct {
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Target    string `json:"target" example:"preview" doc:"Preview target name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewStartedEvent.
func (e PreviewStartedEvent) Type() uint32 { return TypePreviewStarted }

// PreviewUpdatedEvent is published after new manual controls reached the
// running preview.
type PreviewUpdatedEvent struct {
	DeviceID        string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Manual          bool   `json:"manual" example:"true" doc:"Manual exposure in effect"`
	Sensitivity     int64  `json:"sensitivity,omitempty" example:"800" doc:"Sensor sensitivity (ISO)"`
	FrameDurationNs int64  `json:"frame_duration_ns,omitempty" example:"33333333" doc:"Frame duration in nanoseconds"`
	ExposureTimeNs  int64  `json:"exposure_time_ns,omitempty" example:"16000000" doc:"Exposure time in nanoseconds"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewUpdatedEvent.
func (e PreviewUpdatedEvent) Type() uint32 { return TypePreviewUpdated }

// RecordingStartedEvent is published once the encoder is running.
type RecordingStartedEvent struct {
	SessionID string `json:"session_id" doc:"Recording session identifier"`
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Width     int    `json:"width" example:"1920" doc:"Recording width"`
	Height    int    `json:"height" example:"1080" doc:"Recording height"`
	Bitrate   int    `json:"bitrate" example:"10000000" doc:"Encoder bitrate in bps"`
	Hardware  bool   `json:"hardware" example:"true" doc:"Hardware encoder in use"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingStoppedEvent is published after the encoder stopped.
type RecordingStoppedEvent struct {
	SessionID string `json:"session_id" doc:"Recording session identifier"`
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }

// CaptureCompletedEvent is published when a still capture result arrives.
type CaptureCompletedEvent struct {
	DeviceID    string `json:"device_id" example:"cam0" doc:"Device identifier"`
	RequestID   string `json:"request_id" doc:"Capture request identifier"`
	FrameNumber uint64 `json:"frame_number" example:"42" doc:"Device frame number"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureCompletedEvent.
func (e CaptureCompletedEvent) Type() uint32 { return TypeCaptureCompleted }

// CaptureFailedEvent is published when a still capture failed on the device.
type CaptureFailedEvent struct {
	DeviceID  string `json:"device_id" example:"cam0" doc:"Device identifier"`
	RequestID string `json:"request_id" doc:"Capture request identifier"`
	Error     string `json:"error" example:"sensor timeout" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureFailedEvent.
func (e CaptureFailedEvent) Type() uint32 { return TypeCaptureFailed }
