package simcam

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/smazurov/camops/internal/camera"
)

// patternPhases is how many distinct frames are pre-rendered per size.
const patternPhases = 8

// patterns renders and caches JPEG colour-bar frames. The bars shift with
// the phase so consecutive frames differ.
type patterns struct {
	quality int

	mu    sync.Mutex
	cache map[camera.Size][][]byte
}

func newPatterns(quality int) *patterns {
	return &patterns{quality: quality, cache: make(map[camera.Size][][]byte)}
}

var bars = []color.RGBA{
	{235, 235, 235, 255},
	{235, 235, 16, 255},
	{16, 235, 235, 255},
	{16, 235, 16, 255},
	{235, 16, 235, 255},
	{235, 16, 16, 255},
	{16, 16, 235, 255},
	{16, 16, 16, 255},
}

// frame returns the encoded frame for seq. The returned slice is shared and
// must not be modified.
func (p *patterns) frame(size camera.Size, seq uint64) ([]byte, error) {
	phase := int(seq % patternPhases)

	p.mu.Lock()
	defer p.mu.Unlock()

	frames := p.cache[size]
	if frames == nil {
		frames = make([][]byte, patternPhases)
		p.cache[size] = frames
	}
	if frames[phase] != nil {
		return frames[phase], nil
	}

	data, err := p.render(size, phase)
	if err != nil {
		return nil, err
	}
	frames[phase] = data
	return data, nil
}

func (p *patterns) render(size camera.Size, phase int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	barWidth := max(size.Width/len(bars), 1)
	shift := phase * barWidth / patternPhases

	for x := range size.Width {
		c := bars[((x+shift)/barWidth)%len(bars)]
		for y := range size.Height {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
