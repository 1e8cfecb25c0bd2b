package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
)

// DevicePathInput selects a device by identifier.
type DevicePathInput struct {
	DeviceID string `path:"device_id" example:"cam0" doc:"Device identifier"`
}

func resolutions(sizes []camera.Size) []models.Resolution {
	out := make([]models.Resolution, len(sizes))
	for i, s := range sizes {
		out[i] = models.Resolution{Width: s.Width, Height: s.Height}
	}
	return out
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Controller status, open device and recorder counters",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.StatusResponse, error) {
		status := s.camera.Status()
		data := models.StatusData{Status: status.String()}

		// Device state is only reachable while the controller is ready.
		if status == camera.StatusOK {
			if id, err := s.camera.DeviceID(ctx); err == nil {
				data.DeviceID = id
			}
			if rec, err := s.camera.Recording(ctx); err == nil {
				data.Recording = rec.Running
			}
		}
		if s.options.Preview != nil {
			data.PreviewFrames, _ = s.options.Preview.Stats()
		}
		if s.options.Metrics != nil {
			snap := s.options.Metrics.Snapshot()
			data.Metrics = &snap
		}
		return &models.StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List the device identifiers reported by the camera service",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.DeviceListResponse, error) {
		ids, err := s.camera.ListDevices(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		open, err := s.camera.DeviceID(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		if ids == nil {
			ids = []string{}
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: ids, Count: len(ids), Open: open},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "open-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/open",
		Summary:     "Open Device",
		Description: "Open a device. Fails when another device is already open",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502, 503},
	}, func(ctx context.Context, input *DevicePathInput) (*models.DeviceResponse, error) {
		if err := s.camera.OpenDevice(ctx, input.DeviceID); err != nil {
			return nil, mapCameraError(err)
		}
		return &models.DeviceResponse{Body: models.DeviceData{DeviceID: input.DeviceID}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "close-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/close",
		Summary:     "Close Device",
		Description: "Close the open device and drop its capability snapshot",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 502},
	}, func(ctx context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		id, err := s.camera.DeviceID(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		if err := s.camera.CloseDevice(ctx); err != nil {
			return nil, mapCameraError(err)
		}
		return &models.DeviceResponse{Body: models.DeviceData{DeviceID: id}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "device-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/capabilities",
		Summary:     "Capabilities",
		Description: "Output sizes of the open device. Available once a stream was configured",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, _ *struct{}) (*models.CapabilitiesResponse, error) {
		caps, err := s.camera.Capabilities(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		id, err := s.camera.DeviceID(ctx)
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.CapabilitiesResponse{
			Body: models.CapabilitiesData{
				DeviceID:  id,
				Processed: resolutions(caps.Sizes(camera.CategoryProcessed)),
				JPEG:      resolutions(caps.Sizes(camera.CategoryJPEG)),
			},
		}, nil
	})
}
