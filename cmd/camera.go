package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/config"
	"github.com/smazurov/camops/internal/events"
	"github.com/smazurov/camops/internal/imagereader"
	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/metrics"
	"github.com/smazurov/camops/internal/recorder"
	"github.com/smazurov/camops/internal/simcam"
	"github.com/spf13/cobra"
)

// CameraOptions are the camera, simulator and recorder settings shared by the
// server and the standalone subcommands. Flag names follow the field names.
type CameraOptions struct {
	Config string

	SimDevices   string `toml:"sim.devices" env:"SIM_DEVICES"`
	SimSizes     string `toml:"sim.sizes" env:"SIM_SIZES"`
	SimJpegSizes string `toml:"sim.jpeg_sizes" env:"SIM_JPEG_SIZES"`
	SimFrameRate int    `toml:"sim.frame_rate" env:"SIM_FRAME_RATE"`

	RecorderOutputDir       string `toml:"recorder.output_dir" env:"RECORDER_OUTPUT_DIR"`
	RecorderBinary          string `toml:"recorder.ffmpeg_binary" env:"RECORDER_FFMPEG_BINARY"`
	RecorderHardwareEncoder string `toml:"recorder.hardware_encoder" env:"RECORDER_HARDWARE_ENCODER"`
}

// DefaultCameraOptions matches the server defaults.
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{
		Config:            "config.toml",
		SimDevices:        "0",
		SimSizes:          "640x480,1920x1080",
		SimJpegSizes:      "640x480,1920x1080",
		SimFrameRate:      simcam.DefaultFrameRate,
		RecorderOutputDir: recorder.DefaultOutputDir,
		RecorderBinary:    "ffmpeg",
	}
}

// AddFlags registers the options as persistent flags on cmd.
func (o *CameraOptions) AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.Config, "config", "c", o.Config, "Path to configuration file")
	f.StringVar(&o.SimDevices, "sim-devices", o.SimDevices, "Comma separated simulated device ids")
	f.StringVar(&o.SimSizes, "sim-sizes", o.SimSizes, "Simulated stream sizes, e.g. 640x480,1920x1080")
	f.StringVar(&o.SimJpegSizes, "sim-jpeg-sizes", o.SimJpegSizes, "Simulated JPEG sizes")
	f.IntVar(&o.SimFrameRate, "sim-frame-rate", o.SimFrameRate, "Simulated frame rate")
	f.StringVar(&o.RecorderOutputDir, "recorder-output-dir", o.RecorderOutputDir, "Directory for recordings")
	f.StringVar(&o.RecorderBinary, "recorder-binary", o.RecorderBinary, "ffmpeg executable")
	f.StringVar(&o.RecorderHardwareEncoder, "recorder-hardware-encoder", o.RecorderHardwareEncoder, "Hardware encoder, e.g. h264_vaapi")
}

// Load applies the config file and environment to the options.
func (o *CameraOptions) Load(cmd *cobra.Command) error {
	return config.LoadConfig(o, cmd)
}

// SimConfig builds the simulated camera service configuration.
func (o *CameraOptions) SimConfig() (simcam.Config, error) {
	processed, err := camera.ParseSizes(o.SimSizes)
	if err != nil {
		return simcam.Config{}, fmt.Errorf("sim sizes: %w", err)
	}
	jpeg, err := camera.ParseSizes(o.SimJpegSizes)
	if err != nil {
		return simcam.Config{}, fmt.Errorf("sim jpeg sizes: %w", err)
	}

	var ids []string
	for _, id := range strings.Split(o.SimDevices, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return simcam.Config{
		DeviceIDs: ids,
		Processed: processed,
		JPEG:      jpeg,
		FrameRate: o.SimFrameRate,
	}, nil
}

// RecorderConfig builds the encoder configuration.
func (o *CameraOptions) RecorderConfig() recorder.Config {
	return recorder.Config{
		OutputDir:       o.RecorderOutputDir,
		FFmpegBinary:    o.RecorderBinary,
		HardwareEncoder: o.RecorderHardwareEncoder,
		FrameRate:       o.SimFrameRate,
		GracefulTimeout: 10 * time.Second,
	}
}

// Stack is a wired controller with its collaborators.
type Stack struct {
	Manager    *simcam.Manager
	Recorder   *recorder.Recorder
	Controller *camera.Controller
}

// NewStack wires a controller to the simulated camera service and the ffmpeg
// recorder. bus and collector may be nil.
func NewStack(o *CameraOptions, bus *events.Bus, collector *metrics.Collector) (*Stack, error) {
	simCfg, err := o.SimConfig()
	if err != nil {
		return nil, err
	}
	manager := simcam.NewManager(simCfg)

	recOpts := []recorder.Option{}
	ctrlOpts := []camera.Option{
		camera.WithReaderFactory(imagereader.Factory(logging.GetLogger("camera"))),
	}
	if collector != nil {
		recOpts = append(recOpts, recorder.WithMetrics(collector))
		ctrlOpts = append(ctrlOpts, camera.WithMetrics(collector))
	}
	if bus != nil {
		ctrlOpts = append(ctrlOpts, camera.WithEventBus(bus))
	}

	rec := recorder.New(o.RecorderConfig(), recOpts...)
	ctrlOpts = append(ctrlOpts, camera.WithEncoder(rec))

	return &Stack{
		Manager:    manager,
		Recorder:   rec,
		Controller: camera.New(manager, ctrlOpts...),
	}, nil
}
