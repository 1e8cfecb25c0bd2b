package nats

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/camops/internal/camera"
)

// Subject prefixes.
const (
	SubjectEventsPrefix  = "camops.events"
	SubjectControlPrefix = "camops.control"
)

// Control actions, the subject suffix after SubjectControlPrefix.
const (
	ActionStatus         = "status"
	ActionPreviewStart   = "preview.start"
	ActionPreviewUpdate  = "preview.update"
	ActionRecordingStart = "recording.start"
	ActionRecordingStop  = "recording.stop"
)

// SubjectEvent returns the subject an event with the given wire name is published on.
func SubjectEvent(name string) string {
	return SubjectEventsPrefix + "." + name
}

// SubjectControl returns the request subject for action.
func SubjectControl(action string) string {
	return SubjectControlPrefix + "." + action
}

// ControlRequest is the optional payload of a control request.
type ControlRequest struct {
	Hardware bool                   `json:"hardware,omitempty"`
	Controls *camera.ManualControls `json:"controls,omitempty"`
}

// Marshal serializes the request to JSON.
func (r ControlRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalControlRequest parses a request payload. An empty payload is a zero request.
func UnmarshalControlRequest(data []byte) (ControlRequest, error) {
	var r ControlRequest
	if len(data) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("invalid control request: %w", err)
	}
	return r, nil
}

// ControlReply answers every control request.
type ControlReply struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the reply to JSON.
func (r ControlReply) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalControlReply parses a reply payload.
func UnmarshalControlReply(data []byte) (ControlReply, error) {
	var r ControlReply
	err := json.Unmarshal(data, &r)
	return r, err
}
