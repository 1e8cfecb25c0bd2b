package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/config"
	"github.com/smazurov/camops/internal/logging"
	"github.com/spf13/cobra"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	opts := DefaultCameraOptions()
	var output, controlsFile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take one JPEG still",
		Long:  `Opens the first device, captures one JPEG at the selected still size and writes it to a file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Load(cmd); err != nil {
				return err
			}
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			var controls *camera.ManualControls
			if controlsFile != "" {
				c, err := config.LoadControls(controlsFile)
				if err != nil {
					return err
				}
				controls = c
			}

			stack, err := NewStack(&opts, nil, nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return captureToFile(ctx, stack.Controller, controls, output, cmd.OutOrStdout())
		},
	}
	opts.AddFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "capture.jpg", "Output file")
	cmd.Flags().StringVar(&controlsFile, "controls", "", "Manual control preset (TOML)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")
	return cmd
}

func captureToFile(ctx context.Context, ctrl *camera.Controller, controls *camera.ManualControls, path string, out io.Writer) error {
	if err := ctrl.Initialize(ctx); err != nil {
		return err
	}
	defer ctrl.Close(context.Background())

	images := make(chan camera.Frame, 1)
	failed := make(chan error, 1)
	listener := func(img *camera.Image) {
		// The image is closed after the callback, keep a copy.
		frame := camera.Frame{Data: bytes.Clone(img.Data), Size: img.Size, Timestamp: img.Timestamp}
		select {
		case images <- frame:
		default:
		}
	}
	results := camera.ResultFuncs{
		Failed: func(f camera.CaptureFailure) {
			reason := f.Reason
			if reason == nil {
				reason = errors.New("capture failed")
			}
			select {
			case failed <- reason:
			default:
			}
		},
	}

	if err := ctrl.CaptureStill(ctx, listener, results, controls); err != nil {
		return err
	}

	select {
	case img := <-images:
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(out, "wrote %s (%s, %d bytes)\n", path, img.Size, len(img.Data))
		return nil
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
