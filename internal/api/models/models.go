package models

import (
	"github.com/smazurov/camops/internal/ffmpeg"
	"github.com/smazurov/camops/internal/logging"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Name      string `json:"name" example:"camops" doc:"Application name"`
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Encoder option models
type OptionsData struct {
	Options  []ffmpeg.Option     `json:"options" doc:"Recording encoder options with metadata"`
	Defaults []ffmpeg.OptionType `json:"defaults" doc:"Options enabled by default"`
}

type OptionsResponse struct {
	Body OptionsData
}

// Log models
type LogsInput struct {
	Module string `query:"module" example:"camera" doc:"Only entries from this module"`
	Level  string `query:"level" example:"warn" doc:"Only entries at this level"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" example:"100" doc:"Most recent N entries, 0 for all"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int                `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
