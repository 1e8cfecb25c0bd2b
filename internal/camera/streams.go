package camera

import (
	"context"

	"github.com/smazurov/camops/internal/events"
)

// ConfigurePreview sizes surface for the open device and remembers its target
// as the preview output. The device is opened if needed.
func (c *Controller) ConfigurePreview(ctx context.Context, surface Surface) error {
	const op = "configure_preview"
	return c.do(ctx, op, func() error {
		if surface == nil {
			return newError(KindInvalidState, op, "nil preview surface", nil)
		}
		if err := c.ensureOpen(ctx, op); err != nil {
			return err
		}

		sel := SelectSize(UsePreview, c.caps)
		if sel.Fallback != "" {
			c.logger.Warn("Preview size fallback", "size", sel.Size.String(), "reason", sel.Fallback)
		}
		c.logger.Info("Set preview size", "size", sel.Size.String())

		surface.SetFixedSize(sel.Size.Width, sel.Size.Height)
		c.previewTarget = surface.Target()
		return nil
	})
}

// StartPreview streams the preview target alone.
func (c *Controller) StartPreview(ctx context.Context) error {
	const op = "start_preview"
	return c.do(ctx, op, func() error {
		if err := c.ensureOpen(ctx, op); err != nil {
			return err
		}
		if c.previewTarget == nil {
			return newError(KindInvalidState, op, "preview target is not configured", nil)
		}
		if c.recording.State() == RecordingRunning {
			return newError(KindInvalidState, op, "recording in progress", nil)
		}

		preview := c.previewTarget
		req, err := c.sess.run(transition{
			op: op,
			outputs: func() []Target {
				c.outputs.Reset()
				c.outputs.Add(preview)
				return c.outputs.Targets()
			},
			build: func(d Device) (*Request, error) {
				return BuildRequest(d, PurposePreview, preview)
			},
			repeating: true,
		})
		if err != nil {
			return err
		}

		c.previewReq = req
		c.publish(events.PreviewStartedEvent{
			DeviceID:  c.device.ID(),
			Target:    preview.Name(),
			Timestamp: timestamp(),
		})
		return nil
	})
}

// UpdatePreview applies manual controls to the preview request and resubmits
// it. Device failures are logged and never returned; only precondition
// errors reach the caller.
func (c *Controller) UpdatePreview(ctx context.Context, controls *ManualControls) error {
	return c.do(ctx, "update_preview", func() error {
		if c.previewReq == nil || c.sess == nil {
			c.logger.Warn("Update camera preview skipped, preview not started")
			return nil
		}

		ApplyManualControls(c.previewReq, controls)
		if c.sess.Active() != c.previewReq {
			c.logger.Debug("Preview not streaming, controls stored for next start")
			return nil
		}
		if err := c.sess.resubmit(c.previewReq); err != nil {
			c.logger.Error("Update camera preview failed", "error", err)
			return nil
		}

		ev := events.PreviewUpdatedEvent{DeviceID: c.device.ID(), Timestamp: timestamp()}
		if controls != nil && controls.Enabled {
			ev.Manual = true
			ev.Sensitivity = int64(controls.Sensitivity)
			ev.FrameDurationNs = controls.FrameDuration
			ev.ExposureTimeNs = controls.ExposureTime
		}
		c.publish(ev)
		return nil
	})
}

// CaptureStill takes one JPEG. listener receives the image on the reader's
// delivery goroutine and must not keep it after returning; results receives
// the device capture result. Any repeating stream is stopped first.
func (c *Controller) CaptureStill(ctx context.Context, listener ImageListener, results ResultListener, controls *ManualControls) error {
	const op = "capture_still"
	return c.do(ctx, op, func() error {
		if listener == nil {
			return newError(KindInvalidState, op, "nil image listener", nil)
		}
		if c.newReader == nil {
			return newError(KindInvalidState, op, "no image reader factory", nil)
		}
		if err := c.ensureOpen(ctx, op); err != nil {
			return err
		}
		if c.recording.State() == RecordingRunning {
			return newError(KindInvalidState, op, "recording in progress", nil)
		}

		deviceID := c.device.ID()
		_, err := c.sess.run(transition{
			op: op,
			onIdle: func() error {
				sel := SelectSize(UseJPEG, c.caps)
				if sel.Fallback != "" {
					c.logger.Warn("JPEG size fallback", "size", sel.Size.String(), "reason", sel.Fallback)
				}
				if err := c.prepareReader(op, sel.Size); err != nil {
					return err
				}
				c.reader.SetOnImageAvailable(c.imageHandler(listener))
				return nil
			},
			outputs: func() []Target {
				c.outputs.Reset()
				c.outputs.Add(c.reader.Target())
				return c.outputs.Targets()
			},
			build: func(d Device) (*Request, error) {
				req, err := BuildRequest(d, PurposeStillCapture, c.reader.Target())
				if err != nil {
					return nil, err
				}
				ApplyManualControls(req, controls)
				return req, nil
			},
			results: c.captureResults(deviceID, results),
		})
		return err
	})
}

// prepareReader keeps the current reader when it already has size, otherwise
// closes it and creates a new one.
func (c *Controller) prepareReader(op string, size Size) error {
	if c.reader != nil && c.reader.Size() == size {
		return nil
	}
	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close image reader", "size", c.reader.Size().String(), "error", err)
		}
		c.reader = nil
	}

	reader, err := c.newReader(size, FormatJPEG, StillReaderCapacity)
	if err != nil {
		return accessError(op, "create image reader", err)
	}
	c.reader = reader
	c.logger.Debug("Image reader created", "size", size.String(), "capacity", StillReaderCapacity)
	return nil
}

func (c *Controller) imageHandler(listener ImageListener) func(ImageReader) {
	return func(r ImageReader) {
		img, err := r.AcquireNextImage()
		if err != nil {
			c.logger.Warn("Failed to acquire captured image", "error", err)
			return
		}
		defer img.Close()
		listener(img)
	}
}

// captureResults forwards results to the caller and publishes them on the bus.
func (c *Controller) captureResults(deviceID string, results ResultListener) ResultListener {
	return ResultFuncs{
		Completed: func(r CaptureResult) {
			c.publish(events.CaptureCompletedEvent{
				DeviceID:    deviceID,
				RequestID:   r.RequestID,
				FrameNumber: r.FrameNumber,
				Timestamp:   timestamp(),
			})
			if results != nil {
				results.OnCaptureCompleted(r)
			}
		},
		Failed: func(f CaptureFailure) {
			msg := "capture failed"
			if f.Reason != nil {
				msg = f.Reason.Error()
			}
			c.publish(events.CaptureFailedEvent{
				DeviceID:  deviceID,
				RequestID: f.RequestID,
				Error:     msg,
				Timestamp: timestamp(),
			})
			if results != nil {
				results.OnCaptureFailed(f)
			}
		},
	}
}

// StartRecording streams the recording target alongside the preview target
// and starts the encoder once the device accepted the request.
func (c *Controller) StartRecording(ctx context.Context, useHardwareEncoder bool) error {
	const op = "start_recording"
	return c.do(ctx, op, func() error {
		if err := c.ensureOpen(ctx, op); err != nil {
			return err
		}
		if c.recording.State() == RecordingRunning {
			return newError(KindInvalidState, op, "recording already running", nil)
		}

		sel := SelectSize(UseRecording, c.caps)
		if sel.Fallback != "" {
			c.logger.Warn("Recording size fallback", "size", sel.Size.String(), "reason", sel.Fallback)
		}

		if c.recordReq == nil {
			req, err := BuildRequest(c.device, PurposeRecord)
			if err != nil {
				return accessError(op, "create record request", err)
			}
			c.recordReq = req
		}

		// Encoder output first, then wire it into outputs and the request.
		if err := c.recording.Configure(sel.Size, useHardwareEncoder, sel.Bitrate); err != nil {
			return err
		}
		c.outputs.Reset()
		if err := c.recording.OnConfiguringOutputs(c.outputs, false); err != nil {
			return err
		}
		if err := c.recording.OnConfiguringRequest(c.recordReq, false); err != nil {
			return err
		}
		if c.previewTarget != nil {
			c.outputs.Add(c.previewTarget)
			c.recordReq.AddTarget(c.previewTarget)
		}

		req := c.recordReq
		_, err := c.sess.run(transition{
			op:      op,
			outputs: c.outputs.Targets,
			build: func(Device) (*Request, error) {
				return req, nil
			},
			repeating:   true,
			afterSubmit: c.recording.Start,
		})
		if err != nil {
			return err
		}

		session := c.recording.Session()
		if c.metrics != nil {
			c.metrics.SetRecording(true)
		}
		c.publish(events.RecordingStartedEvent{
			SessionID: session.ID,
			DeviceID:  c.device.ID(),
			Width:     session.Size.Width,
			Height:    session.Size.Height,
			Bitrate:   session.Bitrate,
			Hardware:  session.UseHardwareEncoder,
			Timestamp: timestamp(),
		})
		return nil
	})
}

// StopRecording detaches the encoder, drains the device, stops the encoder
// and resumes the remaining outputs. The encoder is never stopped while the
// device may still write into its target.
func (c *Controller) StopRecording(ctx context.Context) error {
	const op = "stop_recording"
	return c.do(ctx, op, func() error {
		if c.device == nil {
			return newError(KindInvalidState, op, "no device open", nil)
		}
		if c.recording.State() != RecordingRunning {
			return newError(KindInvalidState, op, "recording not running", nil)
		}

		if err := c.recording.OnConfiguringRequest(c.recordReq, true); err != nil {
			return err
		}
		if err := c.recording.OnConfiguringOutputs(c.outputs, true); err != nil {
			return err
		}

		session := c.recording.Session()
		req := c.recordReq
		// An encoder stop error still resumes the remaining outputs and is
		// reported afterwards.
		var stopErr error
		_, err := c.sess.run(transition{
			op: op,
			onIdle: func() error {
				stopErr = c.recording.Stop()
				if c.recording.State() == RecordingRunning {
					return stopErr
				}
				return nil
			},
			outputs: c.outputs.Targets,
			build: func(Device) (*Request, error) {
				if len(req.Targets()) == 0 {
					return nil, nil
				}
				return req, nil
			},
			repeating: true,
		})
		if c.recording.State() != RecordingRunning {
			if c.metrics != nil {
				c.metrics.SetRecording(false)
			}
			c.publish(events.RecordingStoppedEvent{
				SessionID: session.ID,
				DeviceID:  c.device.ID(),
				Timestamp: timestamp(),
			})
		}
		if err == nil {
			err = stopErr
		}
		return err
	})
}

// Recording returns the current recording session.
func (c *Controller) Recording(ctx context.Context) (RecordingSession, error) {
	var s RecordingSession
	err := c.do(ctx, "recording", func() error {
		s = c.recording.Session()
		return nil
	})
	return s, err
}
