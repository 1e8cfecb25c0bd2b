package camera

import (
	"log/slog"

	"github.com/google/uuid"
)

// RecordingState is the state of the recording coordinator.
type RecordingState string

// Recording states.
const (
	RecordingIdle       RecordingState = "idle"
	RecordingConfigured RecordingState = "configured"
	RecordingRunning    RecordingState = "running"
)

// Recording coordinates the encoder output with the device stream. It owns
// the attach/detach of the encoder target and refuses transitions that would
// release the encoder while the device can still write into it.
type Recording struct {
	encoder         Encoder
	state           RecordingState
	session         RecordingSession
	outputAttached  bool
	requestAttached bool
	logger          *slog.Logger
}

// NewRecording returns an idle coordinator for encoder.
func NewRecording(encoder Encoder, logger *slog.Logger) *Recording {
	return &Recording{
		encoder: encoder,
		state:   RecordingIdle,
		logger:  logger,
	}
}

// State returns the coordinator state.
func (r *Recording) State() RecordingState {
	return r.state
}

// Session returns the current recording session.
func (r *Recording) Session() RecordingSession {
	return r.session
}

// Configure prepares the encoder. The device is not touched.
func (r *Recording) Configure(size Size, useHardwareEncoder bool, bitrate int) error {
	const op = "recording.configure"
	if r.encoder == nil {
		return newError(KindInvalidState, op, "no encoder available", nil)
	}
	if r.state == RecordingRunning {
		return newError(KindInvalidState, op, "recording already running", nil)
	}
	if err := r.encoder.Configure(size, useHardwareEncoder, bitrate); err != nil {
		return accessError(op, "configure encoder", err)
	}

	r.session = RecordingSession{
		ID:                 uuid.NewString(),
		Size:               size,
		UseHardwareEncoder: useHardwareEncoder,
		Bitrate:            bitrate,
	}
	r.state = RecordingConfigured
	r.logger.Info("Recording configured",
		"session_id", r.session.ID,
		"size", size.String(),
		"hardware", useHardwareEncoder,
		"bitrate", bitrate)
	return nil
}

// OnConfiguringOutputs adds the encoder target to outputs, or removes it when detach is set.
func (r *Recording) OnConfiguringOutputs(outputs *OutputSet, detach bool) error {
	const op = "recording.outputs"
	if r.state == RecordingIdle {
		return newError(KindInvalidState, op, "recording not configured", nil)
	}
	if detach {
		outputs.Remove(r.encoder.Target())
		r.outputAttached = false
		r.logger.Debug("Encoder target detached", "from", "outputs", "session_id", r.session.ID)
		return nil
	}
	outputs.Add(r.encoder.Target())
	r.outputAttached = true
	r.logger.Debug("Encoder target attached", "to", "outputs", "session_id", r.session.ID)
	return nil
}

// OnConfiguringRequest attaches the encoder target to req, or detaches it.
func (r *Recording) OnConfiguringRequest(req *Request, detach bool) error {
	const op = "recording.request"
	if r.state == RecordingIdle {
		return newError(KindInvalidState, op, "recording not configured", nil)
	}
	if detach {
		req.RemoveTarget(r.encoder.Target())
		r.requestAttached = false
		r.logger.Debug("Encoder target detached", "from", "request", "session_id", r.session.ID)
		return nil
	}
	req.AddTarget(r.encoder.Target())
	r.requestAttached = true
	r.logger.Debug("Encoder target attached", "to", "request", "session_id", r.session.ID)
	return nil
}

// Start starts the encoder. Call only after the device accepted a repeating
// request carrying the encoder target.
func (r *Recording) Start() error {
	const op = "recording.start"
	if r.state != RecordingConfigured {
		return newError(KindInvalidState, op, "recording is "+string(r.state), nil)
	}
	if !r.outputAttached || !r.requestAttached {
		return newError(KindInvalidState, op, "encoder target not attached", nil)
	}
	if err := r.encoder.Start(); err != nil {
		return accessError(op, "start encoder", err)
	}
	r.state = RecordingRunning
	r.session.Running = true
	r.logger.Info("Recording started", "session_id", r.session.ID)
	return nil
}

// Stop stops the encoder. The encoder target must already be detached from
// both the request and the outputs, and the device must be idle.
func (r *Recording) Stop() error {
	const op = "recording.stop"
	if r.state != RecordingRunning {
		return newError(KindInvalidState, op, "recording is "+string(r.state), nil)
	}
	if r.outputAttached || r.requestAttached {
		return newError(KindInvalidState, op, "encoder target still attached", nil)
	}
	// The encoder has released its output once Stop returns, even on error.
	err := r.encoder.Stop()
	r.state = RecordingConfigured
	r.session.Running = false
	if err != nil {
		r.logger.Warn("Recording stopped with encoder error", "session_id", r.session.ID, "error", err)
		return accessError(op, "stop encoder", err)
	}
	r.logger.Info("Recording stopped", "session_id", r.session.ID)
	return nil
}

// Reset drops the session after the device went away. A running encoder is
// stopped; its error is logged because there is no device left to recover.
func (r *Recording) Reset() {
	if r.state == RecordingRunning {
		if err := r.encoder.Stop(); err != nil {
			r.logger.Warn("Failed to stop encoder during reset", "session_id", r.session.ID, "error", err)
		}
	}
	r.state = RecordingIdle
	r.session = RecordingSession{}
	r.outputAttached = false
	r.requestAttached = false
}
