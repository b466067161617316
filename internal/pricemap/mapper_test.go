package pricemap

import (
	"errors"
	"math"
	"testing"

	"github.com/chartglass/overlay/internal/winsys"
)

func TestNewMapperRejectsInvalidRange(t *testing.T) {
	cases := []struct {
		name     string
		min, max float64
	}{
		{"equal", 100, 100},
		{"inverted", 100, 90},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewMapper(tc.min, tc.max); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("NewMapper(%v, %v) error = %v; want ErrInvalidRange", tc.min, tc.max, err)
			}
		})
	}
}

func TestPriceToYMidpoint(t *testing.T) {
	m, err := NewMapper(90, 100)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	rect := winsys.Rect{X: 100, Y: 100, Width: 400, Height: 300}

	if got := m.PriceToY(95, rect); got != 250 {
		t.Fatalf("PriceToY(95) = %v; want 250", got)
	}
	if got := m.PriceToY(100, rect); got != 100 {
		t.Fatalf("PriceToY(max) = %v; want top edge 100", got)
	}
	if got := m.PriceToY(90, rect); got != 400 {
		t.Fatalf("PriceToY(min) = %v; want bottom edge 400", got)
	}
}

func TestPriceToYClampsOutOfRange(t *testing.T) {
	m, err := NewMapper(90, 100)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	rect := winsys.Rect{Y: 50, Height: 200}

	if got := m.PriceToY(150, rect); got != 50 {
		t.Fatalf("PriceToY(above max) = %v; want 50", got)
	}
	if got := m.PriceToY(10, rect); got != 250 {
		t.Fatalf("PriceToY(below min) = %v; want 250", got)
	}
}

func TestRoundTripWithinHalfPixel(t *testing.T) {
	m, err := NewMapper(87.5, 131.25)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	rect := winsys.Rect{X: 10, Y: 20, Width: 800, Height: 600}

	pricePerPixel := (m.Max() - m.Min()) / float64(rect.Height)
	for _, price := range []float64{87.5, 92.1, 100, 110.004, 131.25} {
		y := m.PriceToY(price, rect)
		back := m.YToPrice(y, rect)
		if diff := math.Abs(back - price); diff > pricePerPixel/2 {
			t.Fatalf("round trip %v -> %v -> %v; drift %v exceeds half pixel %v", price, y, back, diff, pricePerPixel/2)
		}
	}
}

func TestPriceToYMonotonicDecreasing(t *testing.T) {
	m, err := NewMapper(1, 1000)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	rect := winsys.Rect{Height: 500}

	prev := math.Inf(1)
	for price := 1.0; price <= 1000; price += 7.3 {
		y := m.PriceToY(price, rect)
		if y > prev {
			t.Fatalf("PriceToY not monotonic: price %v gave y %v after %v", price, y, prev)
		}
		prev = y
	}
}

func TestDegenerateRect(t *testing.T) {
	m, err := NewMapper(90, 100)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	rect := winsys.Rect{Y: 40, Height: 0}

	if got := m.PriceToY(95, rect); got != 40 {
		t.Fatalf("PriceToY on zero-height rect = %v; want top edge 40", got)
	}
	if got := m.YToPrice(40, rect); got != 90 {
		t.Fatalf("YToPrice on zero-height rect = %v; want min 90", got)
	}
}
