package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/ffmpeg"
)

// registerOptionsRoutes registers the encoder options listing.
func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-ffmpeg-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Encoder Options",
		Description: "Recording encoder options with descriptions, defaults and conflicts",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{
			Body: models.OptionsData{
				Options:  ffmpeg.AllOptions,
				Defaults: ffmpeg.GetDefaultOptions(),
			},
		}, nil
	})
}
