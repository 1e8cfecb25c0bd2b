package ffmpeg

import (
	"fmt"
	"slices"
	"strings"
)

// OptionType is a named ffmpeg behaviour flag.
type OptionType string

// Supported options.
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionLowLatency         OptionType = "low_latency"
	OptionFastStart          OptionType = "faststart"
)

// Option describes an OptionType for listings.
type Option struct {
	Key           OptionType   `json:"key"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	AppDefault    bool         `json:"app_default"`
	ConflictsWith []OptionType `json:"conflicts_with,omitempty"`
}

// AllOptions lists every supported option.
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Name:          "Generate PTS",
		Description:   "Generate presentation timestamps for piped frames",
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Stamp piped frames with arrival time, keeps duration right when frames are dropped",
		AppDefault:    true,
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:         OptionThreadQueue1024,
		Name:        "Large Thread Queue",
		Description: "Use a 1024 packet input queue",
		AppDefault:  true,
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Flush packets as soon as they are encoded",
	},
	{
		Key:         OptionFastStart,
		Name:        "Fast Start",
		Description: "Move the MP4 index to the front of the file when the recording ends",
		AppDefault:  true,
	},
}

// GetOptionByKey returns the option with key, or nil.
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled by default.
func GetDefaultOptions() []OptionType {
	var out []OptionType
	for _, o := range AllOptions {
		if o.AppDefault {
			out = append(out, o.Key)
		}
	}
	return out
}

// ValidateOptions rejects unknown options and conflicting pairs.
func ValidateOptions(selected []OptionType) error {
	for _, key := range selected {
		opt := GetOptionByKey(key)
		if opt == nil {
			return fmt.Errorf("unknown ffmpeg option %q", key)
		}
		for _, other := range opt.ConflictsWith {
			if slices.Contains(selected, other) {
				return fmt.Errorf("ffmpeg option %q conflicts with %q", key, other)
			}
		}
	}
	return nil
}

// applyInputOptions writes the options that must precede -i.
func applyInputOptions(options []OptionType, cmd *strings.Builder) {
	var fflags []string
	for _, o := range options {
		switch o {
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionWallclockTimestamp:
			cmd.WriteString(" -use_wallclock_as_timestamps 1")
		case OptionThreadQueue1024:
			cmd.WriteString(" -thread_queue_size 1024")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
		}
	}
	if len(fflags) > 0 {
		cmd.WriteString(" -fflags " + strings.Join(fflags, ""))
	}
}

// applyOutputOptions writes the options that follow the encoder settings.
func applyOutputOptions(options []OptionType, cmd *strings.Builder) {
	for _, o := range options {
		switch o {
		case OptionLowLatency:
			cmd.WriteString(" -flush_packets 1")
		case OptionFastStart:
			cmd.WriteString(" -movflags +faststart")
		}
	}
}
