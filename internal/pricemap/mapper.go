// Package pricemap converts between the price domain and pixel-Y positions
// inside a target rectangle.
package pricemap

import (
	"errors"
	"fmt"

	"github.com/chartglass/overlay/internal/winsys"
)

// ErrInvalidRange reports a price window whose maximum does not exceed its
// minimum. Callers validate once via NewMapper, not per conversion.
var ErrInvalidRange = errors.New("invalid price range: max must exceed min")

// Mapper linearly interpolates a (min, max) price window onto the vertical
// extent of a rectangle. Higher prices map to smaller Y values.
type Mapper struct {
	min  float64
	max  float64
	span float64
}

// NewMapper validates the price window and returns a ready Mapper.
func NewMapper(minPrice, maxPrice float64) (*Mapper, error) {
	if maxPrice <= minPrice {
		return nil, fmt.Errorf("pricemap: min=%v max=%v: %w", minPrice, maxPrice, ErrInvalidRange)
	}
	return &Mapper{min: minPrice, max: maxPrice, span: maxPrice - minPrice}, nil
}

// Min returns the lower bound of the configured price window.
func (m *Mapper) Min() float64 { return m.min }

// Max returns the upper bound of the configured price window.
func (m *Mapper) Max() float64 { return m.max }

// PriceToY maps a price to a pixel-Y inside rect. Prices outside the window
// clamp to the rectangle edges; the mapper never extrapolates off-surface.
func (m *Mapper) PriceToY(price float64, rect winsys.Rect) float64 {
	top := float64(rect.Y)
	bottom := float64(rect.Y + rect.Height)
	if rect.Height <= 0 {
		return top
	}
	y := top + float64(rect.Height)*(m.max-price)/m.span
	if y < top {
		return top
	}
	if y > bottom {
		return bottom
	}
	return y
}

// YToPrice is the inverse of PriceToY over the same rectangle.
func (m *Mapper) YToPrice(y float64, rect winsys.Rect) float64 {
	if rect.Height <= 0 {
		return m.min
	}
	top := float64(rect.Y)
	bottom := float64(rect.Y + rect.Height)
	if y < top {
		y = top
	}
	if y > bottom {
		y = bottom
	}
	return m.max - (y-top)*m.span/float64(rect.Height)
}
