package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
)

func (s *Server) recordingData(rec camera.RecordingSession) models.RecordingData {
	data := models.RecordingData{
		SessionID: rec.ID,
		Running:   rec.Running,
		Size:      models.Resolution{Width: rec.Size.Width, Height: rec.Size.Height},
		Bitrate:   rec.Bitrate,
		Hardware:  rec.UseHardwareEncoder,
	}
	if s.options.Recorder != nil {
		data.Output = s.options.Recorder.Output()
	}
	return data
}

func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-recording",
		Method:      http.MethodGet,
		Path:        "/api/recording",
		Summary:     "Recording",
		Description: "Current or last configured recording session",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, _ *struct{}) (*models.RecordingResponse, error) {
		rec, err := s.camera.Recording(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.RecordingResponse{Body: s.recordingData(rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-recording",
		Method:      http.MethodPost,
		Path:        "/api/recording/start",
		Summary:     "Start Recording",
		Description: "Start encoding the device stream. The preview keeps running when configured",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, input *models.RecordingRequest) (*models.RecordingResponse, error) {
		if err := s.camera.StartRecording(ctx, input.Body.Hardware); err != nil {
			return nil, mapCameraError(err)
		}
		rec, err := s.camera.Recording(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.RecordingResponse{Body: s.recordingData(rec)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-recording",
		Method:      http.MethodPost,
		Path:        "/api/recording/stop",
		Summary:     "Stop Recording",
		Description: "Detach the encoder from the device, wait for in-flight frames and finalize the file",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.RecordingResponse, error) {
		if err := s.camera.StopRecording(ctx); err != nil {
			return nil, mapCameraError(err)
		}
		rec, err := s.camera.Recording(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.RecordingResponse{Body: s.recordingData(rec)}, nil
	})
}
