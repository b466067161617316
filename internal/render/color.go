package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.RGBA{
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"red":     {220, 50, 47, 255},
	"green":   {0, 200, 80, 255},
	"blue":    {60, 120, 255, 255},
	"yellow":  {245, 200, 0, 255},
	"orange":  {255, 140, 0, 255},
	"cyan":    {0, 200, 220, 255},
	"magenta": {220, 60, 220, 255},
	"gray":    {128, 128, 128, 255},
}

// ParseColor accepts "#RRGGBB", "#RRGGBBAA", or a small set of names.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 9) {
		return color.RGBA{}, fmt.Errorf("unparseable color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 64)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unparseable color %q: %w", s, err)
	}
	if len(s) == 7 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// parseColorOr returns the fallback when s is empty or malformed.
func parseColorOr(s string, fallback color.RGBA) color.RGBA {
	if s == "" {
		return fallback
	}
	c, err := ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}

// scaleAlpha multiplies a color's alpha by an opacity in [0, 1].
func scaleAlpha(c color.RGBA, opacity float64) color.RGBA {
	if opacity >= 1 {
		return c
	}
	if opacity < 0 {
		opacity = 0
	}
	c.A = uint8(float64(c.A) * opacity)
	return c
}
