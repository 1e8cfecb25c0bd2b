package ffmpeg

// RecordParams describes one recording: MJPEG frames arrive on stdin and are
// encoded to a file.
type RecordParams struct {
	// Binary is the ffmpeg executable. Empty means "ffmpeg" from PATH.
	Binary string

	// Input
	Width  int
	Height int
	FPS    int // input frame rate; 0 lets ffmpeg guess

	// Encoder
	Encoder string // libx264, h264_vaapi, ...
	Bitrate int    // bits per second; 0 leaves the encoder default
	GOP     int    // keyframe interval in frames; 0 uses 2 seconds of frames
	Preset  string // software encoders only

	// Hardware setup, usually filled from HardwareProfile.
	GlobalArgs   []string
	VideoFilters string

	Options []OptionType

	// LogLevel is passed as -loglevel level+<LogLevel> so lines carry a level tag.
	LogLevel   string
	OutputPath string
}
