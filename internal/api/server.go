package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camops/internal/api/models"
	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/metrics"
	"github.com/smazurov/camops/internal/version"
)

// DefaultCaptureTimeout bounds how long a capture request waits for its image.
const DefaultCaptureTimeout = 5 * time.Second

// Camera is the controller surface exposed over HTTP.
type Camera interface {
	Status() camera.Status
	ListDevices(ctx context.Context) ([]string, error)
	DeviceID(ctx context.Context) (string, error)
	OpenDevice(ctx context.Context, id string) error
	CloseDevice(ctx context.Context) error
	Capabilities(ctx context.Context) (*camera.Capabilities, error)
	ConfigurePreview(ctx context.Context, surface camera.Surface) error
	StartPreview(ctx context.Context) error
	UpdatePreview(ctx context.Context, controls *camera.ManualControls) error
	CaptureStill(ctx context.Context, listener camera.ImageListener, results camera.ResultListener, controls *camera.ManualControls) error
	StartRecording(ctx context.Context, useHardwareEncoder bool) error
	StopRecording(ctx context.Context) error
	Recording(ctx context.Context) (camera.RecordingSession, error)
}

// PreviewSurface is the drawable the preview renders into, readable over HTTP.
type PreviewSurface interface {
	camera.Surface
	Size() camera.Size
	Latest() (camera.Frame, bool)
	Stats() (frames, rejected uint64)
}

// RecordingOutput reports where the encoder writes.
type RecordingOutput interface {
	Output() string
}

// Options configures the API server.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	Camera         Camera
	Preview        PreviewSurface
	Recorder       RecordingOutput    // optional
	EventBus       *events.Bus        // optional, enables /api/events
	Metrics        *metrics.Collector // optional, enables /metrics and status counters
	UI             http.Handler       // optional, served at /
	CaptureTimeout time.Duration
}

// Server exposes the camera controller over a Huma v2 API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	camera     Camera
	eventBus   *events.Bus
	logger     *slog.Logger
	captureMu  sync.Mutex
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}

	mux := http.NewServeMux()
	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camops API", "1.0.0")
	config.Info.Description = "Diagnostic API for a single camera: preview, still capture and recording"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		camera:   opts.Camera,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus scrape endpoint, no auth
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	if opts.UI != nil {
		mux.Handle("GET /", opts.UI)
	}

	server.registerRoutes()
	return server
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camops API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down. SSE connections are closed when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{
			Body: models.HealthData{Status: "ok", Message: "API is healthy"},
		}
		if st := s.camera.Status(); st != camera.StatusOK {
			resp.Body.Status = "degraded"
			resp.Body.Message = "camera controller is " + st.String()
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Name:      v.Name,
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				GoVersion: v.GoVersion,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerCameraRoutes()
	s.registerPreviewRoutes()
	s.registerCaptureRoutes()
	s.registerRecordingRoutes()
	s.registerOptionsRoutes()
	s.registerLogRoutes()
	if s.eventBus != nil {
		s.registerSSERoutes()
	}
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
