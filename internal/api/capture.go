package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
)

// resultGrace is how long a capture waits for the device result once the
// image is in hand.
const resultGrace = 250 * time.Millisecond

type capturedImage struct {
	data []byte
	size camera.Size
}

// captureWaiter collects the image and result of one still capture. Its
// callbacks run on reader and device goroutines and never block.
type captureWaiter struct {
	images  chan capturedImage
	results chan camera.CaptureResult
	failed  chan error
}

func newCaptureWaiter() *captureWaiter {
	return &captureWaiter{
		images:  make(chan capturedImage, 1),
		results: make(chan camera.CaptureResult, 1),
		failed:  make(chan error, 1),
	}
}

func (w *captureWaiter) onImage(img *camera.Image) {
	select {
	case w.images <- capturedImage{data: bytes.Clone(img.Data), size: img.Size}:
	default:
	}
}

func (w *captureWaiter) listener() camera.ResultListener {
	return camera.ResultFuncs{
		Completed: func(r camera.CaptureResult) {
			select {
			case w.results <- r:
			default:
			}
		},
		Failed: func(f camera.CaptureFailure) {
			reason := f.Reason
			if reason == nil {
				reason = errors.New("capture failed")
			}
			select {
			case w.failed <- reason:
			default:
			}
		},
	}
}

func (w *captureWaiter) wait(ctx context.Context, timeout time.Duration) (capturedImage, camera.CaptureResult, error) {
	var result camera.CaptureResult
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case img := <-w.images:
			select {
			case result = <-w.results:
			case <-time.After(resultGrace):
			}
			return img, result, nil
		case result = <-w.results:
		case err := <-w.failed:
			return capturedImage{}, result, err
		case <-timer.C:
			return capturedImage{}, result, context.DeadlineExceeded
		case <-ctx.Done():
			return capturedImage{}, result, ctx.Err()
		}
	}
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "capture-still",
		Method:      http.MethodPost,
		Path:        "/api/capture",
		Summary:     "Capture",
		Description: "Take one JPEG still. Any repeating stream is stopped first",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503, 504},
	}, func(ctx context.Context, input *models.CaptureRequest) (*models.CaptureResponse, error) {
		timeout := s.options.CaptureTimeout
		if input.Body.Timeout > 0 {
			timeout = time.Duration(input.Body.Timeout * float64(time.Second))
		}

		// One capture at a time: a new capture replaces the reader listener.
		s.captureMu.Lock()
		defer s.captureMu.Unlock()

		w := newCaptureWaiter()
		if err := s.camera.CaptureStill(ctx, w.onImage, w.listener(), toControls(input.Body.Controls)); err != nil {
			return nil, mapCameraError(err)
		}

		img, result, err := w.wait(ctx, timeout)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, huma.Error504GatewayTimeout("timed out waiting for image", err)
			}
			if ctx.Err() != nil {
				return nil, huma.Error500InternalServerError("capture cancelled", err)
			}
			return nil, huma.Error502BadGateway("capture failed", err)
		}

		id, err := s.camera.DeviceID(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.CaptureResponse{
			Body: models.CaptureData{
				DeviceID:    id,
				RequestID:   result.RequestID,
				FrameNumber: result.FrameNumber,
				Width:       img.size.Width,
				Height:      img.size.Height,
				Image:       base64.StdEncoding.EncodeToString(img.data),
			},
		}, nil
	})
}
