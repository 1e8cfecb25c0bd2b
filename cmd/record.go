package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/camops/internal/logging"
	"github.com/smazurov/camops/internal/surface"
	"github.com/spf13/cobra"
)

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	opts := DefaultCameraOptions()
	var duration time.Duration
	var hardware bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the first device to a file",
		Long: `Starts the preview and a recording on the first device, records for the given duration ` +
			`(or until interrupted) and stops the recording in the safe order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Load(cmd); err != nil {
				return err
			}
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("main")

			stack, err := NewStack(&opts, nil, nil)
			if err != nil {
				return err
			}
			ctrl := stack.Controller

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ctrl.Initialize(ctx); err != nil {
				return err
			}
			defer ctrl.Close(context.Background())

			if err := ctrl.ConfigurePreview(ctx, surface.New("preview")); err != nil {
				return err
			}
			if err := ctrl.StartPreview(ctx); err != nil {
				return err
			}
			if err := ctrl.StartRecording(ctx, hardware); err != nil {
				return err
			}
			session, err := ctrl.Recording(ctx)
			if err != nil {
				return err
			}
			logger.Info("Recording", "session_id", session.ID, "size", session.Size.String(), "bitrate", session.Bitrate, "duration", duration)

			select {
			case <-time.After(duration):
			case <-ctx.Done():
				logger.Info("Interrupted, stopping recording")
			}

			// ctx may already be cancelled by the signal.
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := ctrl.StopRecording(stopCtx); err != nil {
				return err
			}

			written, dropped := stack.Recorder.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d frames, %d dropped)\n", stack.Recorder.Output(), written, dropped)
			return nil
		},
	}
	opts.AddFlags(cmd)
	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "Recording length")
	cmd.Flags().BoolVar(&hardware, "hardware", false, "Use the hardware encoder")
	return cmd
}
