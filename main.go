package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camops/cmd"
	"github.com/smazurov/camops/internal/api"
	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/config"
	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/led"
	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/metrics"
	"github.com/smazurov/camops/internal/nats"
	"github.com/smazurov/camops/internal/surface"
	"github.com/smazurov/camops/internal/version"
	"github.com/smazurov/camops/ui"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port             string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CaptureTimeoutMs int    `help:"How long a capture request waits for its image" default:"5000" toml:"server.capture_timeout_ms" env:"SERVER_CAPTURE_TIMEOUT_MS"`
	MetricsEnabled   bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"server.metrics_enabled" env:"SERVER_METRICS_ENABLED"`
	UIEnabled        bool   `help:"Serve the browser diagnostic page on /" default:"true" toml:"server.ui_enabled" env:"SERVER_UI_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Simulated camera service
	SimDevices   string `help:"Comma separated simulated device ids" default:"0" toml:"sim.devices" env:"SIM_DEVICES"`
	SimSizes     string `help:"Simulated stream sizes" default:"640x480,1920x1080" toml:"sim.sizes" env:"SIM_SIZES"`
	SimJpegSizes string `help:"Simulated JPEG sizes" default:"640x480,1920x1080" toml:"sim.jpeg_sizes" env:"SIM_JPEG_SIZES"`
	SimFrameRate int    `help:"Simulated frame rate" default:"30" toml:"sim.frame_rate" env:"SIM_FRAME_RATE"`

	// Recorder settings
	RecorderOutputDir       string `help:"Directory for recordings" default:"recordings" toml:"recorder.output_dir" env:"RECORDER_OUTPUT_DIR"`
	RecorderBinary          string `help:"ffmpeg executable" default:"ffmpeg" toml:"recorder.ffmpeg_binary" env:"RECORDER_FFMPEG_BINARY"`
	RecorderHardwareEncoder string `help:"Hardware encoder used when requested" default:"" toml:"recorder.hardware_encoder" env:"RECORDER_HARDWARE_ENCODER"`

	// Manual control preset, applied to the preview whenever the file changes
	ControlsPreset string `help:"Manual control preset file (TOML)" default:"" toml:"controls.preset_file" env:"CONTROLS_PRESET_FILE"`

	// NATS event mirror and remote control
	NatsURL      string `help:"NATS server URL for events and control (empty disables)" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsControl  bool   `help:"Accept control requests over NATS" default:"true" toml:"nats.control" env:"NATS_CONTROL"`

	// Activity LED
	IndicatorEnabled bool   `help:"Show recording and error state on a board LED" default:"true" toml:"indicator.enabled" env:"INDICATOR_ENABLED"`
	IndicatorLed     string `help:"LED to drive (empty picks the first one found)" default:"" toml:"indicator.led" env:"INDICATOR_LED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera   string `help:"Camera controller logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingSimcam   string `help:"Simulated camera logging level" default:"info" toml:"logging.simcam" env:"LOGGING_SIMCAM"`
	LoggingRecorder string `help:"Recorder logging level" default:"info" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingFfmpeg   string `help:"ffmpeg output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingConfig   string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingLed      string `help:"Activity LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingNats     string `help:"NATS bridge logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func (o *Options) cameraOptions() *cmd.CameraOptions {
	return &cmd.CameraOptions{
		Config:                  o.Config,
		SimDevices:              o.SimDevices,
		SimSizes:                o.SimSizes,
		SimJpegSizes:            o.SimJpegSizes,
		SimFrameRate:            o.SimFrameRate,
		RecorderOutputDir:       o.RecorderOutputDir,
		RecorderBinary:          o.RecorderBinary,
		RecorderHardwareEncoder: o.RecorderHardwareEncoder,
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":   opts.LoggingCamera,
				"simcam":   opts.LoggingSimcam,
				"recorder": opts.LoggingRecorder,
				"ffmpeg":   opts.LoggingFfmpeg,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"config":   opts.LoggingConfig,
				"led":      opts.LoggingLed,
				"nats":     opts.LoggingNats,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		collector := metrics.New()

		stack, err := cmd.NewStack(opts.cameraOptions(), eventBus, collector)
		if err != nil {
			logger.Error("Invalid camera configuration", "error", err)
			os.Exit(1)
		}
		ctrl := stack.Controller
		preview := surface.New("preview")

		apiOpts := &api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Camera:         ctrl,
			Preview:        preview,
			Recorder:       stack.Recorder,
			EventBus:       eventBus,
			CaptureTimeout: time.Duration(opts.CaptureTimeoutMs) * time.Millisecond,
		}
		if opts.MetricsEnabled {
			apiOpts.Metrics = collector
		}
		if opts.UIEnabled {
			uiHandler, uiErr := ui.Handler()
			if uiErr != nil {
				logger.Warn("Diagnostic page unavailable", "error", uiErr)
			} else {
				apiOpts.UI = uiHandler
			}
		}
		server := api.NewServer(apiOpts)

		var presetWatcher *config.Watcher[*camera.ManualControls]
		if opts.ControlsPreset != "" {
			presetWatcher = config.NewConfigWatcher(opts.ControlsPreset, config.LoadControls, logging.GetLogger("config"),
				config.WithErrorHandler[*camera.ManualControls](func(err error) {
					logger.Warn("Ignoring invalid controls preset", "path", opts.ControlsPreset, "error", err)
				}),
			)
			presetWatcher.OnReload(func(controls *camera.ManualControls) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if updateErr := ctrl.UpdatePreview(ctx, controls); updateErr != nil {
					logger.Warn("Failed to apply controls preset", "error", updateErr)
					return
				}
				logger.Info("Applied controls preset", "path", opts.ControlsPreset, "enabled", controls.Enabled)
			})
		}

		var indicator *led.Indicator
		if opts.IndicatorEnabled {
			ledLogger := logging.GetLogger("led")
			indicator = led.NewIndicator(led.Detect(ledLogger), opts.IndicatorLed, eventBus, ledLogger)
		}

		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		natsURL := opts.NatsURL
		if opts.NatsEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{
				Port:   opts.NatsPort,
				Logger: logging.GetLogger("nats"),
			})
			if natsURL == "" {
				natsURL = natsServer.ClientURL()
			}
		}
		if natsURL != "" {
			bridgeOpts := nats.BridgeOptions{
				URL:      natsURL,
				EventBus: eventBus,
				Logger:   logging.GetLogger("nats"),
			}
			if opts.NatsControl {
				bridgeOpts.Camera = ctrl
				bridgeOpts.Preview = preview
			}
			natsBridge = nats.NewBridge(bridgeOpts)
		}

		hooks.OnStart(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			initErr := ctrl.Initialize(ctx)
			cancel()
			if initErr != nil {
				logger.Error("Failed to initialize camera controller", "error", initErr)
				os.Exit(1)
			}

			if indicator != nil {
				indicator.Start()
			}

			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
				}
			}
			if natsBridge != nil {
				if startErr := natsBridge.Start(); startErr != nil {
					logger.Warn("NATS unavailable, continuing without it", "error", startErr)
				}
			}
			if presetWatcher != nil {
				if startErr := presetWatcher.Start(); startErr != nil {
					logger.Warn("Failed to watch controls preset", "path", opts.ControlsPreset, "error", startErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if presetWatcher != nil {
				if stopErr := presetWatcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping preset watcher", "error", stopErr)
				}
			}

			// Finish an active recording in order before releasing the device.
			if session, recErr := ctrl.Recording(ctx); recErr == nil && session.Running {
				if stopErr := ctrl.StopRecording(ctx); stopErr != nil {
					logger.Error("Error stopping recording", "error", stopErr)
				}
			}
			if closeErr := ctrl.Close(ctx); closeErr != nil {
				logger.Error("Error closing camera controller", "error", closeErr)
			}
			if indicator != nil {
				indicator.Stop()
			}
			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "camops"
	cli.Root().Short = "Single camera diagnostic host"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateCaptureCmd())
	cli.Root().AddCommand(cmd.CreateRecordCmd())

	cli.Run()
}
