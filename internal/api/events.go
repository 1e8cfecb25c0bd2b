package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camops/internal/events"
)

// registerSSERoutes registers the controller event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time controller events: status changes, device open/close, preview, recording and capture results",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		events.NameStatusChanged:    events.StatusChangedEvent{},
		events.NameDeviceOpened:     events.DeviceOpenedEvent{},
		events.NameDeviceClosed:     events.DeviceClosedEvent{},
		events.NamePreviewStarted:   events.PreviewStartedEvent{},
		events.NamePreviewUpdated:   events.PreviewUpdatedEvent{},
		events.NameRecordingStarted: events.RecordingStartedEvent{},
		events.NameRecordingStopped: events.RecordingStoppedEvent{},
		events.NameCaptureCompleted: events.CaptureCompletedEvent{},
		events.NameCaptureFailed:    events.CaptureFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StatusChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceOpenedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PreviewStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PreviewUpdatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureFailedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current status first so clients start from a known state.
		current := s.camera.Status().String()
		if err := send.Data(events.StatusChangedEvent{
			Status:    current,
			Previous:  current,
			Reason:    "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
