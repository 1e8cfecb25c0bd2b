package events

// Wire names used for SSE event types and NATS subjects.
const (
	NameStatusChanged    = "status-changed"
	NameDeviceOpened     = "device-opened"
	NameDeviceClosed     = "device-closed"
	NamePreviewStarted   = "preview-started"
	NamePreviewUpdated   = "preview-updated"
	NameRecordingStarted = "recording-started"
	NameRecordingStopped = "recording-stopped"
	NameCaptureCompleted = "capture-completed"
	NameCaptureFailed    = "capture-failed"
)

var names = map[uint32]string{
	TypeStatusChanged:    NameStatusChanged,
	TypeDeviceOpened:     NameDeviceOpened,
	TypeDeviceClosed:     NameDeviceClosed,
	TypePreviewStarted:   NamePreviewStarted,
	TypePreviewUpdated:   NamePreviewUpdated,
	TypeRecordingStarted: NameRecordingStarted,
	TypeRecordingStopped: NameRecordingStopped,
	TypeCaptureCompleted: NameCaptureCompleted,
	TypeCaptureFailed:    NameCaptureFailed,
}

// Name returns the wire name of ev, or "" for unknown types.
func Name(ev Event) string {
	return names[ev.Type()]
}
