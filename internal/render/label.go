package render

import (
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/winsys"
)

const (
	labelPadX   = 4
	labelPadY   = 2
	labelMargin = 4
)

var labelFace = basicfont.Face7x13

// drawLabel renders the price box for one line, anchored per the line's
// configuration and clamped so it never leaves the frame.
func (p *Pipeline) drawLabel(frame *image.RGBA, l lineset.Line, local winsys.Rect) {
	text := strconv.FormatFloat(l.Price, 'f', 2, 64)
	textW := font.MeasureString(labelFace, text).Ceil()
	metrics := labelFace.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	boxW := textW + 2*labelPadX
	boxH := textH + 2*labelPadY

	anchor := l.Anchor
	if anchor == "" {
		anchor = p.settings.DefaultAnchor
	}
	x := labelMargin
	if anchor == lineset.AnchorRight {
		x = local.Width - boxW - labelMargin
	}
	if x < 0 {
		x = 0
	}

	y := int(p.mapper.PriceToY(l.Price, local)) - boxH/2
	if y < 0 {
		y = 0
	}
	if y+boxH > local.Height {
		y = local.Height - boxH
	}
	if y < 0 || boxW > local.Width {
		return
	}

	bg := scaleAlpha(parseColorOr(l.Color, color.RGBA{255, 255, 255, 255}), p.settings.LabelOpacity)
	fillRect(frame, x, y, boxW, boxH, bg)

	d := font.Drawer{
		Dst:  frame,
		Src:  image.NewUniform(contrastColor(bg)),
		Face: labelFace,
		Dot: fixed.Point26_6{
			X: fixed.I(x + labelPadX),
			Y: fixed.I(y+labelPadY) + metrics.Ascent,
		},
	}
	d.DrawString(text)
}

// contrastColor picks black or white text against the box background.
func contrastColor(bg color.RGBA) color.RGBA {
	// Rec. 601 luma approximation.
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{255, 255, 255, 255}
}
