package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Base returns the ffmpeg invocation shared by every command.
func Base(binary string) string {
	if binary == "" {
		binary = "ffmpeg"
	}
	return binary + " -hide_banner"
}

// BuildRecordCommand builds a command that reads MJPEG from stdin and writes
// an H.264 file. Arguments are space separated; paths with spaces are quoted.
func BuildRecordCommand(p *RecordParams) string {
	var cmd strings.Builder
	cmd.WriteString(Base(p.Binary))

	if p.LogLevel != "" {
		cmd.WriteString(" -loglevel level+" + p.LogLevel)
	}
	cmd.WriteString(" -stats")

	for _, arg := range p.GlobalArgs {
		cmd.WriteString(" " + arg)
	}

	applyInputOptions(p.Options, &cmd)
	cmd.WriteString(" -f mjpeg")
	if p.FPS > 0 {
		cmd.WriteString(" -framerate " + strconv.Itoa(p.FPS))
	}
	cmd.WriteString(" -i pipe:0")

	var filters []string
	if p.Width > 0 && p.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", p.Width, p.Height))
	}
	if p.VideoFilters != "" {
		filters = append(filters, p.VideoFilters)
	}
	if len(filters) > 0 {
		cmd.WriteString(" -vf " + strings.Join(filters, ","))
	}

	encoder := p.Encoder
	if encoder == "" {
		encoder = SoftwareEncoder
	}
	cmd.WriteString(" -c:v " + encoder)
	if p.Bitrate > 0 {
		rate := strconv.Itoa(p.Bitrate)
		cmd.WriteString(" -b:v " + rate + " -maxrate " + rate + " -bufsize " + strconv.Itoa(2*p.Bitrate))
	}

	gop := p.GOP
	if gop <= 0 {
		fps := p.FPS
		if fps <= 0 {
			fps = 30
		}
		gop = 2 * fps
	}
	cmd.WriteString(" -g " + strconv.Itoa(gop))

	if !IsHardwareEncoder(encoder) {
		preset := p.Preset
		if preset == "" {
			preset = "veryfast"
		}
		cmd.WriteString(" -preset " + preset + " -pix_fmt yuv420p")
	}

	applyOutputOptions(p.Options, &cmd)
	cmd.WriteString(" -y " + quote(p.OutputPath))
	return cmd.String()
}

func quote(s string) string {
	if !strings.ContainsAny(s, " \t'\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
