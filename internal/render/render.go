// Package render rasterizes a background for displays that cannot run CSS:
// PNG previews and the Linux framebuffer viewer.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/preview"
)

// MaxSize caps either dimension of a rendered frame.
const MaxSize = 4096

// lutSize is the resolution of the precomputed gradient ramp.
const lutSize = 1024

// animatedScale matches background-size 400% 400%.
const animatedScale = 4

type stop struct {
	col    colorful.Color
	alpha  float64
	offset float64
}

// Frame renders c at w×h as it looks after elapsed time of animation.
// Translucent stops are composited over black.
func Frame(c models.BackgroundConfig, w, h int, elapsed time.Duration) *image.RGBA {
	w, h = clamp(w), clamp(h)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	style := preview.Derive(c)
	lut := ramp(parseStops(style.Stops))

	// The gradient is laid out over a virtual box; animation slides the
	// viewport across it.
	vw, vh := float64(w), float64(h)
	var ox, oy float64
	if px, py, ok := style.PositionAt(elapsed); ok {
		vw, vh = vw*animatedScale, vh*animatedScale
		ox = px / 100 * (vw - float64(w))
		oy = py / 100 * (vh - float64(h))
	}
	corner := style.Direction == preview.FadeDirection

	for y := 0; y < h; y++ {
		Y := float64(y) + oy + 0.5
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			X := float64(x) + ox + 0.5
			var t float64
			if corner {
				// "to bottom right": corner to corner regardless of aspect ratio
				t = (X/vw + Y/vh) / 2
			} else {
				// 135deg: the gradient line runs along (1, 1)
				t = (X + Y) / (vw + vh)
			}
			px := lut[index(t)]
			i := x * 4
			row[i+0], row[i+1], row[i+2], row[i+3] = px.R, px.G, px.B, 0xff
		}
	}
	return img
}

// PNG encodes a static frame of c.
func PNG(out io.Writer, c models.BackgroundConfig, w, h int) error {
	if err := png.Encode(out, Frame(c, w, h, 0)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func clamp(v int) int {
	switch {
	case v < 1:
		return 1
	case v > MaxSize:
		return MaxSize
	}
	return v
}

func index(t float64) int {
	i := int(t * (lutSize - 1))
	if i < 0 {
		return 0
	}
	if i >= lutSize {
		return lutSize - 1
	}
	return i
}

func parseStops(in []preview.Stop) []stop {
	out := make([]stop, 0, len(in))
	for _, s := range in {
		col, err := models.ParseHex(s.Color)
		if err != nil {
			col = colorful.Color{}
		}
		out = append(out, stop{col: col, alpha: s.Alpha, offset: s.Offset})
	}
	return out
}

// ramp precomputes colours along the gradient line.
func ramp(stops []stop) []color.RGBA {
	lut := make([]color.RGBA, lutSize)
	for i := range lut {
		lut[i] = sample(stops, float64(i)/(lutSize-1))
	}
	return lut
}

func sample(stops []stop, t float64) color.RGBA {
	if len(stops) == 0 {
		return color.RGBA{A: 0xff}
	}
	a, b := stops[0], stops[len(stops)-1]
	switch {
	case t <= a.offset:
		b = a
	case t >= b.offset:
		a = b
	default:
		for i := 0; i < len(stops)-1; i++ {
			if t >= stops[i].offset && t <= stops[i+1].offset {
				a, b = stops[i], stops[i+1]
				break
			}
		}
	}
	f := 0.0
	if span := b.offset - a.offset; span > 0 {
		f = (t - a.offset) / span
	}
	col := a.col.BlendRgb(b.col, f)
	alpha := a.alpha + (b.alpha-a.alpha)*f

	// over black
	r, g, bl := col.Clamped().RGB255()
	return color.RGBA{
		R: uint8(float64(r)*alpha + 0.5),
		G: uint8(float64(g)*alpha + 0.5),
		B: uint8(float64(bl)*alpha + 0.5),
		A: 0xff,
	}
}
