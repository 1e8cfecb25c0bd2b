package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/smazurov/camops/internal/camera"
	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/surface"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	opts := DefaultCameraOptions()

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List camera devices and their output sizes",
		Long:  `Opens each device in turn through the camera controller and prints the sizes it reports for streams and JPEG stills.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Load(cmd); err != nil {
				return err
			}
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			stack, err := NewStack(&opts, nil, nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return listDevices(ctx, stack.Controller, cmd.OutOrStdout())
		},
	}
	opts.AddFlags(cmd)
	return cmd
}

func listDevices(ctx context.Context, ctrl *camera.Controller, out io.Writer) error {
	if err := ctrl.Initialize(ctx); err != nil {
		return err
	}
	defer ctrl.Close(context.Background())

	ids, err := ctrl.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "no devices")
		return nil
	}

	for _, id := range ids {
		if err := ctrl.OpenDevice(ctx, id); err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", id, err)
			continue
		}
		// Capabilities are fetched on first stream configuration.
		if err := ctrl.ConfigurePreview(ctx, surface.New("devices")); err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", id, err)
		} else if caps, err := ctrl.Capabilities(ctx); err == nil {
			fmt.Fprintf(out, "%s\tstream: %s\tjpeg: %s\n", id,
				formatSizes(caps.Sizes(camera.CategoryProcessed)),
				formatSizes(caps.Sizes(camera.CategoryJPEG)))
		}
		if err := ctrl.CloseDevice(ctx); err != nil {
			return err
		}
	}
	return nil
}

func formatSizes(sizes []camera.Size) string {
	if len(sizes) == 0 {
		return "-"
	}
	s := ""
	for i, size := range sizes {
		if i > 0 {
			s += ","
		}
		s += size.String()
	}
	return s
}
