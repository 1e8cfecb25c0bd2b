package ffmpeg

import (
	"strconv"
	"strings"
)

// ParseLogLevel extracts the log level from ffmpeg output.
// FFmpeg with -loglevel level+info outputs lines like "[info] message"
// or "[component @ 0x...] [level] message" for component-specific logs.
// Returns the level and the message with level stripped but component preserved.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	bracket := line[1:end]

	if isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	// Check for component prefix: [component @ 0x...] [level] message
	// Keep the component, strip only the [level]
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			nextBracket := rest[1:nextEnd]
			if isLogLevel(nextBracket) {
				return nextBracket, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// Progress is one ffmpeg "-stats" status line.
type Progress struct {
	Frame int64
	FPS   float64
	Speed float64
}

// ParseProgress reads a status line such as
// "frame=  120 fps= 30 q=28.0 size=     512kB time=00:00:04.00 bitrate=1048.6kbits/s speed=1.00x".
// It reports false for any other line.
func ParseProgress(line string) (Progress, bool) {
	idx := strings.Index(line, "frame=")
	if idx == -1 {
		return Progress{}, false
	}

	fields := statFields(line[idx:])
	frame, err := strconv.ParseInt(fields["frame"], 10, 64)
	if err != nil {
		return Progress{}, false
	}

	p := Progress{Frame: frame}
	if v, err := strconv.ParseFloat(fields["fps"], 64); err == nil {
		p.FPS = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(fields["speed"], "x"), 64); err == nil {
		p.Speed = v
	}
	return p, true
}

// statFields splits "key= value key=value" pairs. ffmpeg pads values with
// spaces after the '='.
func statFields(s string) map[string]string {
	out := make(map[string]string)
	tokens := strings.Fields(s)
	for i := 0; i < len(tokens); i++ {
		key, value, ok := strings.Cut(tokens[i], "=")
		if !ok {
			continue
		}
		if value == "" && i+1 < len(tokens) && !strings.Contains(tokens[i+1], "=") {
			i++
			value = tokens[i]
		}
		out[key] = value
	}
	return out
}
