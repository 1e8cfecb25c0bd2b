// Package logging wires log/slog for camops with a level per module.
//
// Records fan out to stdout (text or json), to the systemd journal when
// journald is reachable, and to an in-memory history that the HTTP API
// serves at /api/logs.
//
// Call Initialize once at startup, then ask for a module logger:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"camera": "debug"},
//	})
//
//	logger := logging.GetLogger("camera").With("device_id", id)
//	logger.Info("Device opened")
//
// Loggers obtained before Initialize are updated in place, so package-level
// loggers are safe.
//
// Journal entries carry SYSLOG_IDENTIFIER=camops and one upper-cased field
// per attribute:
//
//	journalctl -t camops MODULE=camera
//	journalctl -t camops -p err --since "5m"
//
// TOML form:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	camera = "debug"
//	recorder = "warn"
package logging
