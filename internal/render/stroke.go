package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/chartglass/overlay/internal/lineset"
)

// dashPattern returns alternating on/off run lengths in pixels.
func dashPattern(style lineset.Style) []float64 {
	switch style {
	case lineset.StyleDashed:
		return []float64{8, 4}
	case lineset.StyleDotted:
		return []float64{2, 3}
	case lineset.StyleDashDot:
		return []float64{8, 3, 2, 3}
	default:
		return nil
	}
}

// strokeHorizontal draws one horizontal band of the given stroke width
// centered on y, spanning the full frame width.
func strokeHorizontal(frame *image.RGBA, y, width float64, col color.RGBA, style lineset.Style, antiAlias bool) {
	if col.A == 0 {
		return
	}
	w := frame.Bounds().Dx()
	pattern := dashPattern(style)

	if antiAlias {
		strokeAA(frame, y, width, col, pattern, w)
		return
	}
	strokeAliased(frame, y, width, col, pattern, w)
}

// strokeAA rasterizes every dash segment into one coverage pass.
func strokeAA(frame *image.RGBA, y, width float64, col color.RGBA, pattern []float64, w int) {
	r := vector.NewRasterizer(w, frame.Bounds().Dy())
	r.DrawOp = draw.Over

	top := float32(y - width/2)
	bottom := float32(y + width/2)

	for _, seg := range dashSegments(0, float64(w), pattern) {
		r.MoveTo(float32(seg[0]), top)
		r.LineTo(float32(seg[1]), top)
		r.LineTo(float32(seg[1]), bottom)
		r.LineTo(float32(seg[0]), bottom)
		r.ClosePath()
	}
	r.Draw(frame, frame.Bounds(), image.NewUniform(col), image.Point{})
}

// strokeAliased is the high-performance path: integer row fills, no
// coverage computation.
func strokeAliased(frame *image.RGBA, y, width float64, col color.RGBA, pattern []float64, w int) {
	y0 := int(math.Round(y - width/2))
	h := int(math.Round(width))
	if h < 1 {
		h = 1
	}
	for _, seg := range dashSegments(0, float64(w), pattern) {
		x0 := int(math.Round(seg[0]))
		x1 := int(math.Round(seg[1]))
		fillRect(frame, x0, y0, x1-x0, h, col)
	}
}

// dashSegments expands a pattern into [start, end) x-ranges over the span.
func dashSegments(from, to float64, pattern []float64) [][2]float64 {
	if len(pattern) == 0 {
		return [][2]float64{{from, to}}
	}
	segs := make([][2]float64, 0, 32)
	x := from
	i := 0
	for x < to {
		run := pattern[i%len(pattern)]
		if i%2 == 0 {
			end := math.Min(x+run, to)
			segs = append(segs, [2]float64{x, end})
		}
		x += run
		i++
	}
	return segs
}
