// Package nats mirrors controller events onto NATS and accepts remote control
// commands over request/reply.
//
// # Subject Hierarchy
//
//	camops.events.{event}             # controller events (published, JSON)
//	camops.control.status             # current status (request/reply)
//	camops.control.preview.start      # size the preview surface and stream
//	camops.control.preview.update     # apply manual controls to the preview
//	camops.control.recording.start    # start recording, {"hardware": true}
//	camops.control.recording.stop     # stop recording
//
// Event names are the same as the SSE event types, for example
// camops.events.recording-started. Publishing is fire-and-forget; the host
// keeps running when NATS is unreachable.
//
// # Debugging with nats CLI
//
//	nats sub "camops.events.>"
//	nats request camops.control.status ""
//	nats request camops.control.recording.start '{"hardware":false}'
//
// An embedded server can be started with Server when no NATS deployment exists.
package nats
