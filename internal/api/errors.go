package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/camera"
)

// mapCameraError converts controller errors into HTTP errors.
func mapCameraError(err error) error {
	if err == nil {
		return nil
	}

	var ce *camera.Error
	if errors.As(err, &ce) {
		msg := ce.Message
		switch ce.Kind {
		case camera.KindNotReady, camera.KindInvalidState:
			return huma.Error409Conflict(msg, err)
		case camera.KindNoDevicesAvailable, camera.KindServiceUnavailable:
			return huma.Error503ServiceUnavailable(msg, err)
		case camera.KindAccess:
			return huma.Error502BadGateway(msg, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout("camera operation timed out", err)
	}
	return huma.Error500InternalServerError("internal server error", err)
}
