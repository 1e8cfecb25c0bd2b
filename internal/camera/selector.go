package camera

// Size and bitrate policy.
const (
	// BitrateLow is used for small resolutions such as 640x480.
	BitrateLow = 2_000_000
	// BitrateHigh is used for 1080p.
	BitrateHigh = 10_000_000
	// StillReaderCapacity is how many JPEG buffers a reader holds at once.
	StillReaderCapacity = 2
)

var (
	// DefaultSize is used whenever the preferred size is not reported.
	DefaultSize = Size{Width: 640, Height: 480}
	// HighResolutionSize is preferred whenever the device reports it.
	HighResolutionSize = Size{Width: 1920, Height: 1080}
)

// Use is what a selected size will be used for.
type Use int

// Size uses.
const (
	UsePreview Use = iota
	UseJPEG
	UseRecording
)

func (u Use) String() string {
	switch u {
	case UseJPEG:
		return "jpeg"
	case UseRecording:
		return "recording"
	default:
		return "preview"
	}
}

// category maps a use to the capability list it is drawn from.
func (u Use) category() Category {
	if u == UseJPEG {
		return CategoryJPEG
	}
	return CategoryProcessed
}

// Selection is the outcome of SelectSize. Bitrate is only set for UseRecording.
// Fallback is non-empty when the default size was chosen, describing why.
type Selection struct {
	Size     Size
	Bitrate  int
	Fallback string
}

// SelectSize picks an output size for use from the snapshot. The high
// resolution size wins if it is reported; anything else falls back to the
// default. For recording the bitrate follows the chosen size.
func SelectSize(use Use, caps *Capabilities) Selection {
	sizes := caps.Sizes(use.category())

	sel := Selection{Size: DefaultSize}
	switch {
	case len(sizes) == 0:
		sel.Fallback = "no " + use.category().String() + " sizes reported"
	case Contains(sizes, HighResolutionSize):
		sel.Size = HighResolutionSize
	default:
		sel.Fallback = HighResolutionSize.String() + " not supported"
	}

	if use == UseRecording {
		sel.Bitrate = BitrateLow
		if sel.Size == HighResolutionSize {
			sel.Bitrate = BitrateHigh
		}
	}
	return sel
}
