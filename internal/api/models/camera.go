package models

import "github.com/smazurov/camops/internal/metrics"

// Controller status models
type StatusData struct {
	Status        string            `json:"status" example:"ok" enum:"ok,uninitialized,error" doc:"Controller status"`
	DeviceID      string            `json:"device_id,omitempty" example:"cam0" doc:"Open device, empty when none"`
	Recording     bool              `json:"recording" doc:"Whether a recording is running"`
	PreviewFrames uint64            `json:"preview_frames" doc:"Frames rendered into the preview surface"`
	Metrics       *metrics.Snapshot `json:"metrics,omitempty" doc:"Controller and recorder counters"`
}

type StatusResponse struct {
	Body StatusData
}

// Device models
type DeviceListData struct {
	Devices []string `json:"devices" example:"[\"cam0\",\"cam1\"]" doc:"Device identifiers reported by the camera service"`
	Count   int      `json:"count" example:"2" doc:"Number of devices"`
	Open    string   `json:"open,omitempty" example:"cam0" doc:"Currently open device"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type DeviceData struct {
	DeviceID string `json:"device_id" example:"cam0" doc:"Device identifier"`
}

type DeviceResponse struct {
	Body DeviceData
}

type Resolution struct {
	Width  int `json:"width" example:"1920" doc:"Width in pixels"`
	Height int `json:"height" example:"1080" doc:"Height in pixels"`
}

type CapabilitiesData struct {
	DeviceID  string       `json:"device_id" example:"cam0" doc:"Device identifier"`
	Processed []Resolution `json:"processed" doc:"Sizes for preview and recording outputs"`
	JPEG      []Resolution `json:"jpeg" doc:"Sizes for still JPEG capture"`
}

type CapabilitiesResponse struct {
	Body CapabilitiesData
}

// Manual control models
type ManualControlsData struct {
	Enabled       bool  `json:"enabled" doc:"Disable auto exposure and use the values below"`
	Sensitivity   int32 `json:"sensitivity,omitempty" minimum:"0" example:"400" doc:"ISO sensitivity"`
	FrameDuration int64 `json:"frame_duration_ns,omitempty" minimum:"0" example:"33333333" doc:"Frame duration in nanoseconds"`
	ExposureTime  int64 `json:"exposure_time_ns,omitempty" minimum:"0" example:"10000000" doc:"Exposure time in nanoseconds"`
}

type ControlsRequest struct {
	Body ManualControlsData
}

// Preview models
type PreviewData struct {
	DeviceID string     `json:"device_id" example:"cam0" doc:"Device streaming the preview"`
	Size     Resolution `json:"size" doc:"Preview size chosen for the surface"`
}

type PreviewResponse struct {
	Body PreviewData
}

type MessageData struct {
	Message string `json:"message" example:"preview controls applied" doc:"Status message"`
}

type MessageResponse struct {
	Body MessageData
}

type FrameResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Capture models
type CaptureRequestData struct {
	Controls *ManualControlsData `json:"controls,omitempty" doc:"Optional manual controls for this capture"`
	Timeout  float64             `json:"timeout,omitempty" minimum:"0" maximum:"60" example:"5" doc:"Seconds to wait for the image"`
}

type CaptureRequest struct {
	Body CaptureRequestData
}

type CaptureData struct {
	DeviceID    string `json:"device_id" example:"cam0" doc:"Device that took the image"`
	RequestID   string `json:"request_id,omitempty" doc:"Capture request identifier"`
	FrameNumber uint64 `json:"frame_number,omitempty" doc:"Device frame number"`
	Width       int    `json:"width" example:"640" doc:"Image width"`
	Height      int    `json:"height" example:"480" doc:"Image height"`
	Image       string `json:"image" doc:"Base64-encoded JPEG"`
}

type CaptureResponse struct {
	Body CaptureData
}

// Recording models
type RecordingRequestData struct {
	Hardware bool `json:"hardware,omitempty" doc:"Use the hardware encoder"`
}

type RecordingRequest struct {
	Body RecordingRequestData
}

type RecordingData struct {
	SessionID string     `json:"session_id,omitempty" doc:"Recording session identifier"`
	Running   bool       `json:"running" doc:"Whether the encoder is running"`
	Size      Resolution `json:"size" doc:"Recording size"`
	Bitrate   int        `json:"bitrate" example:"10000000" doc:"Encoder bitrate in bps"`
	Hardware  bool       `json:"hardware" doc:"Hardware encoder in use"`
	Output    string     `json:"output,omitempty" example:"recordings/rec-20250127-103000.000.mp4" doc:"Output file of the current or last recording"`
}

type RecordingResponse struct {
	Body RecordingData
}
