// Package render composes reference lines and labels into an off-screen
// RGBA frame ready for an atomic surface commit.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/pricemap"
	"github.com/chartglass/overlay/internal/winsys"
)

// Settings are the presentation toggles of the pipeline. Disabling
// anti-aliasing, grid, and background together is the high-performance mode
// for low-end hardware.
type Settings struct {
	AntiAlias    bool    `json:"anti_alias"`
	ShowLabels   bool    `json:"show_labels"`
	LineOpacity  float64 `json:"line_opacity"`
	LabelOpacity float64 `json:"label_opacity"`

	ShowGrid  bool   `json:"show_grid"`
	GridColor string `json:"grid_color,omitempty"`
	GridStep  int    `json:"grid_step,omitempty"`

	Background string `json:"background,omitempty"`

	PriceMarker      bool   `json:"price_marker"`
	PriceMarkerColor string `json:"price_marker_color,omitempty"`

	DefaultAnchor lineset.Anchor `json:"default_anchor,omitempty"`
}

// DefaultSettings mirror the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		AntiAlias:     true,
		ShowLabels:    true,
		LineOpacity:   1.0,
		LabelOpacity:  0.9,
		GridStep:      50,
		GridColor:     "#2A2A2A",
		DefaultAnchor: lineset.AnchorRight,
	}
}

// Input is everything one frame needs.
type Input struct {
	Lines lineset.Snapshot
	Rect  winsys.Rect
	// CurrentPrice draws the marker when positive and PriceMarker is on.
	CurrentPrice float64
}

// Pipeline draws frames. It reuses one scratch buffer between frames; the
// render tick is the only caller, settings swaps are atomic pointer-style
// via Configure.
type Pipeline struct {
	mapper   *pricemap.Mapper
	settings Settings
	buf      *image.RGBA
}

// New builds a Pipeline over a validated price mapper.
func New(m *pricemap.Mapper, s Settings) *Pipeline {
	if s.LineOpacity <= 0 {
		s.LineOpacity = 1
	}
	if s.LabelOpacity <= 0 {
		s.LabelOpacity = 1
	}
	return &Pipeline{mapper: m, settings: s}
}

// Configure swaps presentation settings before the next frame.
func (p *Pipeline) Configure(s Settings) {
	if s.LineOpacity <= 0 {
		s.LineOpacity = 1
	}
	if s.LabelOpacity <= 0 {
		s.LabelOpacity = 1
	}
	p.settings = s
}

// SetMapper swaps the price window; the mapper is validated by its
// constructor so the hot path never re-checks the range.
func (p *Pipeline) SetMapper(m *pricemap.Mapper) { p.mapper = m }

// Settings returns the active presentation settings.
func (p *Pipeline) Settings() Settings { return p.settings }

// Render composes one frame. It returns (nil, false) — not an error — when
// the target is not observable or there is nothing to draw.
func (p *Pipeline) Render(in Input) (*image.RGBA, bool) {
	if in.Rect.Empty() {
		return nil, false
	}
	if len(in.Lines.Lines) == 0 && !(p.settings.PriceMarker && in.CurrentPrice > 0) {
		return nil, false
	}

	w, h := in.Rect.Width, in.Rect.Height
	if p.buf == nil || p.buf.Bounds().Dx() != w || p.buf.Bounds().Dy() != h {
		p.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	frame := p.buf

	p.clear(frame)
	if p.settings.ShowGrid {
		p.drawGrid(frame)
	}

	// Local rect: drawing happens in surface coordinates, the mapper works
	// in screen space, so map prices against a zero-origin copy.
	local := winsys.Rect{Width: w, Height: h}

	// Ascending price order keeps overlap deterministic across mutations.
	lines := in.Lines.SortedByPrice()

	// Ordinary lines first, key (emphasis) lines last so they sit on top.
	for pass := 0; pass < 2; pass++ {
		for _, l := range lines {
			if l.Hidden || (pass == 0) == l.Key {
				continue
			}
			p.drawLine(frame, l, local)
		}
	}

	if p.settings.PriceMarker && in.CurrentPrice > 0 {
		p.drawPriceMarker(frame, in.CurrentPrice, local)
	}

	if p.settings.ShowLabels {
		for _, l := range lines {
			if l.Hidden || !l.ShowLabel {
				continue
			}
			p.drawLabel(frame, l, local)
		}
	}

	return frame, true
}

func (p *Pipeline) clear(frame *image.RGBA) {
	bg := parseColorOr(p.settings.Background, color.RGBA{})
	if bg == (color.RGBA{}) {
		pix := frame.Pix
		for i := range pix {
			pix[i] = 0
		}
		return
	}
	draw.Draw(frame, frame.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
}

func (p *Pipeline) drawGrid(frame *image.RGBA) {
	step := p.settings.GridStep
	if step <= 0 {
		step = 50
	}
	col := parseColorOr(p.settings.GridColor, color.RGBA{42, 42, 42, 255})
	b := frame.Bounds()
	for x := step; x < b.Dx(); x += step {
		fillRect(frame, x, 0, 1, b.Dy(), col)
	}
	for y := step; y < b.Dy(); y += step {
		fillRect(frame, 0, y, b.Dx(), 1, col)
	}
}

// Key lines get a weight boost so they read as emphasized at a glance.
const keyWidthBoost = 1.0

func (p *Pipeline) drawLine(frame *image.RGBA, l lineset.Line, local winsys.Rect) {
	y := p.mapper.PriceToY(l.Price, local)
	col := scaleAlpha(parseColorOr(l.Color, color.RGBA{255, 255, 255, 255}), l.Opacity*p.settings.LineOpacity)
	width := l.Width
	if l.Key {
		width += keyWidthBoost
	}
	strokeHorizontal(frame, y, width, col, l.Style, p.settings.AntiAlias)
}

func (p *Pipeline) drawPriceMarker(frame *image.RGBA, price float64, local winsys.Rect) {
	y := p.mapper.PriceToY(price, local)
	col := parseColorOr(p.settings.PriceMarkerColor, color.RGBA{245, 200, 0, 255})
	strokeHorizontal(frame, y, 1, scaleAlpha(col, p.settings.LineOpacity), lineset.StyleDotted, p.settings.AntiAlias)
}

func fillRect(frame *image.RGBA, x, y, w, h int, col color.RGBA) {
	b := frame.Bounds()
	x0, y0 := max(x, b.Min.X), max(y, b.Min.Y)
	x1, y1 := min(x+w, b.Max.X), min(y+h, b.Max.Y)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	draw.Draw(frame, image.Rect(x0, y0, x1, y1), image.NewUniform(col), image.Point{}, draw.Over)
}
