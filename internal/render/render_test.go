package render

import (
	"image/color"
	"testing"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/pricemap"
	"github.com/chartglass/overlay/internal/winsys"
)

func newTestPipeline(t *testing.T, s Settings) *Pipeline {
	t.Helper()
	m, err := pricemap.NewMapper(90, 100)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}
	return New(m, s)
}

func flatSettings() Settings {
	s := DefaultSettings()
	s.AntiAlias = false
	s.ShowLabels = false
	s.ShowGrid = false
	return s
}

func snap(lines ...lineset.Line) lineset.Snapshot {
	return lineset.Snapshot{Lines: lines, Revision: 1}
}

func TestRenderSkipsEmptyInput(t *testing.T) {
	p := newTestPipeline(t, flatSettings())

	if _, ok := p.Render(Input{Rect: winsys.Rect{Width: 100, Height: 100}}); ok {
		t.Fatal("Render() with no lines = true; want false")
	}
	line := lineset.Line{Name: "a", Price: 95, Width: 1, Opacity: 1}
	if _, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{}}); ok {
		t.Fatal("Render() with empty rect = true; want false")
	}
}

func TestRenderDrawsLineAtMappedRow(t *testing.T) {
	p := newTestPipeline(t, flatSettings())
	line := lineset.Line{Name: "mid", Price: 95, Color: "#00C850", Width: 2, Opacity: 1}

	frame, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{X: 100, Y: 100, Width: 400, Height: 300}})
	if !ok {
		t.Fatal("Render() = false; want true")
	}

	// Price 95 in window 90-100 over height 300 lands at local row 150.
	got := frame.RGBAAt(200, 150)
	if got.A == 0 {
		t.Fatalf("pixel at mapped row is transparent: %+v", got)
	}
	if got.G < got.R || got.G < got.B {
		t.Fatalf("pixel at mapped row = %+v; want green dominant", got)
	}

	// Rows far away stay transparent.
	if px := frame.RGBAAt(200, 20); px.A != 0 {
		t.Fatalf("pixel far from line = %+v; want transparent", px)
	}
}

func TestRenderSkipsHiddenLines(t *testing.T) {
	p := newTestPipeline(t, flatSettings())
	line := lineset.Line{Name: "h", Price: 95, Color: "#FF0000", Width: 3, Opacity: 1, Hidden: true}

	frame, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{Width: 200, Height: 300}})
	if !ok {
		t.Fatal("Render() = false; want true")
	}
	if px := frame.RGBAAt(100, 150); px.A != 0 {
		t.Fatalf("hidden line drew pixel %+v; want transparent", px)
	}
}

func TestKeyLineDrawsOverOrdinaryLine(t *testing.T) {
	p := newTestPipeline(t, flatSettings())
	// Both lines at the same price; the key line is listed first but must
	// win the overlap.
	key := lineset.Line{Name: "key", Price: 95, Color: "#0000FF", Width: 2, Opacity: 1, Key: true}
	plain := lineset.Line{Name: "plain", Price: 95, Color: "#FF0000", Width: 2, Opacity: 1}

	frame, ok := p.Render(Input{Lines: snap(key, plain), Rect: winsys.Rect{Width: 200, Height: 300}})
	if !ok {
		t.Fatal("Render() = false; want true")
	}
	px := frame.RGBAAt(100, 150)
	if px.B <= px.R {
		t.Fatalf("overlap pixel = %+v; want key blue on top", px)
	}
}

func TestPriceMarker(t *testing.T) {
	s := flatSettings()
	s.PriceMarker = true
	s.PriceMarkerColor = "#F5C800"
	p := newTestPipeline(t, s)

	// No lines at all, marker alone still produces a frame.
	frame, ok := p.Render(Input{Rect: winsys.Rect{Width: 200, Height: 300}, CurrentPrice: 95})
	if !ok {
		t.Fatal("Render() with marker only = false; want true")
	}
	found := false
	for x := 0; x < 200; x++ {
		if frame.RGBAAt(x, 150).A != 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("no marker pixels on mapped row 150")
	}
}

func TestLabelsStayInsideFrame(t *testing.T) {
	s := flatSettings()
	s.ShowLabels = true
	p := newTestPipeline(t, s)

	// Price at the very top edge; the label box must clamp into the frame
	// rather than vanish off-screen.
	top := lineset.Line{Name: "top", Price: 100, Color: "#FFFFFF", Width: 1, Opacity: 1, ShowLabel: true}
	frame, ok := p.Render(Input{Lines: snap(top), Rect: winsys.Rect{Width: 200, Height: 120}})
	if !ok {
		t.Fatal("Render() = false; want true")
	}

	found := false
	for y := 0; y < 20 && !found; y++ {
		for x := 100; x < 200; x++ {
			if frame.RGBAAt(x, y).A != 0 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatal("no label pixels near clamped top-right corner")
	}
}

func TestBufferReuseAcrossFrames(t *testing.T) {
	p := newTestPipeline(t, flatSettings())
	line := lineset.Line{Name: "a", Price: 95, Color: "#FFFFFF", Width: 1, Opacity: 1}

	f1, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{Width: 100, Height: 100}})
	if !ok {
		t.Fatal("first Render() = false")
	}
	f2, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{Width: 100, Height: 100}})
	if !ok {
		t.Fatal("second Render() = false")
	}
	if f1 != f2 {
		t.Fatal("same-size frames did not reuse the buffer")
	}

	f3, ok := p.Render(Input{Lines: snap(line), Rect: winsys.Rect{Width: 150, Height: 100}})
	if !ok {
		t.Fatal("resized Render() = false")
	}
	if f3 == f1 {
		t.Fatal("resize kept the old buffer")
	}
	if f3.Bounds().Dx() != 150 {
		t.Fatalf("resized frame width = %d; want 150", f3.Bounds().Dx())
	}
}

func TestDashSegments(t *testing.T) {
	segs := dashSegments(0, 20, []float64{8, 4})
	want := [][2]float64{{0, 8}, {12, 20}}
	if len(segs) != len(want) {
		t.Fatalf("dashSegments() = %v; want %v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("dashSegments()[%d] = %v; want %v", i, segs[i], want[i])
		}
	}

	solid := dashSegments(0, 20, nil)
	if len(solid) != 1 || solid[0] != [2]float64{0, 20} {
		t.Fatalf("dashSegments(nil pattern) = %v; want full span", solid)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
	}{
		{"#FF8000", color.RGBA{255, 128, 0, 255}},
		{"#ff800080", color.RGBA{255, 128, 0, 128}},
		{"white", color.RGBA{255, 255, 255, 255}},
		{" Red ", color.RGBA{220, 50, 47, 255}},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Fatalf("ParseColor(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseColor(%q) = %+v; want %+v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "#12", "#GGGGGG", "chartreuse"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("ParseColor(%q) = nil error; want error", bad)
		}
	}
}

func TestContrastColor(t *testing.T) {
	if got := contrastColor(color.RGBA{250, 250, 250, 255}); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("contrastColor(light) = %+v; want black", got)
	}
	if got := contrastColor(color.RGBA{20, 20, 60, 255}); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("contrastColor(dark) = %+v; want white", got)
	}
}
