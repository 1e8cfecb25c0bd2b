package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
)

func toControls(m *models.ManualControlsData) *camera.ManualControls {
	if m == nil {
		return nil
	}
	return &camera.ManualControls{
		Enabled:       m.Enabled,
		Sensitivity:   m.Sensitivity,
		FrameDuration: m.FrameDuration,
		ExposureTime:  m.ExposureTime,
	}
}

func (s *Server) registerPreviewRoutes() {
	if s.options.Preview == nil {
		return
	}
	preview := s.options.Preview

	huma.Register(s.api, huma.Operation{
		OperationID: "start-preview",
		Method:      http.MethodPost,
		Path:        "/api/preview",
		Summary:     "Start Preview",
		Description: "Size the preview surface for the open device (opening the first one if needed) and start streaming into it",
		Tags:        []string{"preview"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.PreviewResponse, error) {
		if err := s.camera.ConfigurePreview(ctx, preview); err != nil {
			return nil, mapCameraError(err)
		}
		if err := s.camera.StartPreview(ctx); err != nil {
			return nil, mapCameraError(err)
		}
		id, err := s.camera.DeviceID(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		size := preview.Size()
		return &models.PreviewResponse{
			Body: models.PreviewData{
				DeviceID: id,
				Size:     models.Resolution{Width: size.Width, Height: size.Height},
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-preview-controls",
		Method:      http.MethodPut,
		Path:        "/api/preview/controls",
		Summary:     "Preview Controls",
		Description: "Apply manual exposure controls to the running preview. Device failures are logged, not returned",
		Tags:        []string{"preview"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(ctx context.Context, input *models.ControlsRequest) (*models.MessageResponse, error) {
		if err := s.camera.UpdatePreview(ctx, toControls(&input.Body)); err != nil {
			return nil, mapCameraError(err)
		}
		return &models.MessageResponse{Body: models.MessageData{Message: "preview controls applied"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "preview-frame",
		Method:      http.MethodGet,
		Path:        "/api/preview/frame",
		Summary:     "Preview Frame",
		Description: "Latest frame rendered into the preview surface as JPEG",
		Tags:        []string{"preview"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, _ *struct{}) (*models.FrameResponse, error) {
		frame, ok := preview.Latest()
		if !ok {
			return nil, huma.Error404NotFound("no preview frame yet")
		}
		return &models.FrameResponse{ContentType: "image/jpeg", Body: frame.Data}, nil
	})
}
