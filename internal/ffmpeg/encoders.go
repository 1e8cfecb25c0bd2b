package ffmpeg

import "strings"

// SoftwareEncoder is used whenever hardware encoding is not requested.
const SoftwareEncoder = "libx264"

// DefaultHardwareEncoder is tried when hardware encoding is requested and no
// encoder was configured.
const DefaultHardwareEncoder = "h264_vaapi"

// HardwareProfile holds the extra arguments a hardware encoder needs.
type HardwareProfile struct {
	GlobalArgs   []string
	VideoFilters string
}

var hardwareProfiles = map[string]HardwareProfile{
	"h264_vaapi": {
		GlobalArgs:   []string{"-vaapi_device", "/dev/dri/renderD128"},
		VideoFilters: "format=nv12,hwupload",
	},
	"h264_qsv": {
		GlobalArgs:   []string{"-init_hw_device", "qsv=hw", "-filter_hw_device", "hw"},
		VideoFilters: "format=nv12,hwupload=extra_hw_frames=64",
	},
	"h264_nvenc":        {},
	"h264_v4l2m2m":      {VideoFilters: "format=nv12"},
	"h264_rkmpp":        {VideoFilters: "format=nv12"},
	"h264_videotoolbox": {},
}

// SelectEncoder returns the encoder and its profile. hwName overrides the
// default hardware encoder; it is ignored when useHardware is false.
func SelectEncoder(useHardware bool, hwName string) (string, HardwareProfile) {
	if !useHardware {
		return SoftwareEncoder, HardwareProfile{}
	}
	if hwName == "" {
		hwName = DefaultHardwareEncoder
	}
	return hwName, hardwareProfiles[hwName]
}

// IsHardwareEncoder reports whether codec names a hardware encoder.
func IsHardwareEncoder(codec string) bool {
	for _, hw := range []string{"nvenc", "amf", "vaapi", "qsv", "videotoolbox", "rkmpp", "v4l2m2m"} {
		if strings.Contains(codec, hw) {
			return true
		}
	}
	return false
}
