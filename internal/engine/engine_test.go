package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/surface"
	"github.com/chartglass/overlay/internal/winsys"
)

const testHandle = winsys.Handle(7)

type harness struct {
	fake    *winsys.Fake
	factory *surface.HeadlessFactory
	hub     *Hub
	eng     *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := winsys.NewFake()
	fake.Put(testHandle, winsys.Rect{X: 100, Y: 100, Width: 400, Height: 300}, true)

	factory := surface.NewHeadlessFactory()
	hub := NewHub()

	opts := DefaultOptions()
	opts.RefreshRate = 200
	opts.PollInterval = 5 * time.Millisecond
	opts.PriceMin = 90
	opts.PriceMax = 100

	eng, err := New(fake, factory, hub, opts, fake)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Stop(); err != nil {
			t.Errorf("cleanup Stop() = %v", err)
		}
	})
	return &harness{fake: fake, factory: factory, hub: hub, eng: eng}
}

func testLines() []lineset.Line {
	return []lineset.Line{
		{Name: "support", Price: 92, Color: "#00C850", Width: 2, Opacity: 1},
		{Name: "resist", Price: 98, Color: "#DC322F", Width: 2, Opacity: 1, Key: true},
	}
}

func (h *harness) surface(t *testing.T) *surface.Headless {
	t.Helper()
	surfaces := h.factory.Surfaces()
	if len(surfaces) == 0 {
		t.Fatal("no surface created")
	}
	return surfaces[len(surfaces)-1]
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func waitForEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func errCode(t *testing.T, err error, want string) {
	t.Helper()
	var coded *winsys.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("error = %v; want CodedError %s", err, want)
	}
	if coded.Code != want {
		t.Fatalf("error code = %s; want %s", coded.Code, want)
	}
}

func TestStartRendersAndStopReleases(t *testing.T) {
	h := newHarness(t)

	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	if got := h.eng.Status().State; got != StateRunning {
		t.Fatalf("State = %s; want %s", got, StateRunning)
	}

	surf := h.surface(t)
	waitFor(t, "first frame commit", func() bool { return surf.Commits() > 0 })

	if frame := surf.LastFrame(); frame == nil || frame.Bounds().Dx() != 400 {
		t.Fatalf("committed frame = %v; want 400px wide", frame)
	}

	if err := h.eng.Stop(); err != nil {
		t.Fatalf("Stop() = %v; want nil", err)
	}
	if got := h.eng.Status().State; got != StateStopped {
		t.Fatalf("State after Stop = %s; want %s", got, StateStopped)
	}
	if live := h.factory.LiveCount(); live != 0 {
		t.Fatalf("LiveCount after Stop = %d; want 0", live)
	}
}

func TestStartInvalidHandleLeavesStopped(t *testing.T) {
	h := newHarness(t)

	err := h.eng.Start(999, testLines(), nil)
	errCode(t, err, winsys.CodeInvalidHandle)

	if got := h.eng.Status().State; got != StateStopped {
		t.Fatalf("State after failed Start = %s; want %s", got, StateStopped)
	}
	if live := h.factory.LiveCount(); live != 0 {
		t.Fatalf("failed Start leaked %d surfaces", live)
	}
}

func TestStartInvalidLinesLeavesStopped(t *testing.T) {
	h := newHarness(t)

	err := h.eng.Start(testHandle, []lineset.Line{{Name: ""}}, nil)
	errCode(t, err, winsys.CodeValidation)

	if got := h.eng.Status().State; got != StateStopped {
		t.Fatalf("State = %s; want %s", got, StateStopped)
	}
	if live := h.factory.LiveCount(); live != 0 {
		t.Fatalf("failed Start leaked %d surfaces", live)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	err := h.eng.Start(testHandle, testLines(), nil)
	errCode(t, err, winsys.CodeAlreadyRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Stop(); err != nil {
		t.Fatalf("Stop() on stopped engine = %v; want nil", err)
	}
}

func TestStopDuringStartRejected(t *testing.T) {
	h := newHarness(t)

	// A Stop landing in the window where Start has claimed the state machine
	// but not yet installed the session must not report success; otherwise
	// the session it raced would survive a nominally successful Stop.
	h.eng.mu.Lock()
	h.eng.state = StateStarting
	h.eng.mu.Unlock()

	errCode(t, h.eng.Stop(), winsys.CodeAlreadyRunning)

	h.eng.mu.Lock()
	h.eng.state = StateStopped
	h.eng.mu.Unlock()
}

func TestPauseHaltsFrameProduction(t *testing.T) {
	h := newHarness(t)
	events, cancel := h.hub.Subscribe(32)
	defer cancel()

	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	waitFor(t, "frames before pause", func() bool { return surf.Commits() > 2 })

	if err := h.eng.Pause(); err != nil {
		t.Fatalf("Pause() = %v; want nil", err)
	}
	waitForEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventDrawingState && !ev.Running && ev.Description == "overlay paused"
	})

	// Let any in-flight tick drain, then verify the counter stands still.
	time.Sleep(50 * time.Millisecond)
	frozen := surf.Commits()
	time.Sleep(100 * time.Millisecond)
	if got := surf.Commits(); got != frozen {
		t.Fatalf("commits advanced to %d while paused; want %d", got, frozen)
	}
	if got := h.eng.Status().State; got != StatePaused {
		t.Fatalf("State = %s; want %s", got, StatePaused)
	}

	if err := h.eng.Resume(); err != nil {
		t.Fatalf("Resume() = %v; want nil", err)
	}
	waitForEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventDrawingState && ev.Running && ev.Description == "overlay resumed"
	})
	waitFor(t, "frames after resume", func() bool { return surf.Commits() > frozen })
}

func TestPauseFromStoppedRejected(t *testing.T) {
	h := newHarness(t)
	errCode(t, h.eng.Pause(), winsys.CodeNotRunning)
	errCode(t, h.eng.Resume(), winsys.CodeNotRunning)
}

func TestFollowingRepositionsSurface(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)

	h.fake.Put(testHandle, winsys.Rect{X: 250, Y: 100, Width: 400, Height: 300}, true)
	waitFor(t, "reposition after target move", func() bool { return surf.Repositions() > 0 })
	waitFor(t, "bounds update", func() bool { return surf.Bounds().X == 250 })

	stats := h.eng.PerformanceStats()
	if stats.FollowingUpdateCount == 0 {
		t.Fatal("FollowingUpdateCount = 0 after a tracked move")
	}
}

func TestFollowingDisabledIgnoresMoves(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	h.eng.SetWindowFollowing(false)

	h.fake.Put(testHandle, winsys.Rect{X: 300, Y: 100, Width: 400, Height: 300}, true)
	time.Sleep(100 * time.Millisecond)
	if got := surf.Repositions(); got != 0 {
		t.Fatalf("Repositions = %d with following disabled; want 0", got)
	}

	// Re-enabling snaps the surface to the current target position.
	h.eng.SetWindowFollowing(true)
	waitFor(t, "snap on re-enable", func() bool { return surf.Bounds().X == 300 })
}

func TestTargetDestroyedStopsSession(t *testing.T) {
	h := newHarness(t)
	events, cancel := h.hub.Subscribe(32)
	defer cancel()

	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	waitFor(t, "first frame", func() bool { return surf.Commits() > 0 })

	h.fake.Destroy(testHandle)

	ev := waitForEvent(t, events, func(ev Event) bool {
		return ev.Kind == EventDrawingState && !ev.Running
	})
	if ev.Description != "target window destroyed" {
		t.Fatalf("stop event description = %q; want target window destroyed", ev.Description)
	}

	waitFor(t, "engine stopped", func() bool { return h.eng.Status().State == StateStopped })
	if live := h.factory.LiveCount(); live != 0 {
		t.Fatalf("LiveCount after target loss = %d; want 0", live)
	}

	// Exactly one stop notification.
	select {
	case extra := <-events:
		if extra.Kind == EventDrawingState && !extra.Running {
			t.Fatalf("second stop event published: %+v", extra)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLineMutationsPublishEvents(t *testing.T) {
	h := newHarness(t)
	events, cancel := h.hub.Subscribe(32)
	defer cancel()

	if err := h.eng.ReplaceLines(testLines()); err != nil {
		t.Fatalf("ReplaceLines() = %v; want nil", err)
	}
	ev := waitForEvent(t, events, func(ev Event) bool { return ev.Kind == EventLinesUpdated })
	if ev.UpdateKind != lineset.UpdateBatch || ev.CurrentCount != 2 {
		t.Fatalf("batch event = %+v; want batch with 2 lines", ev)
	}

	if err := h.eng.AddLine(lineset.Line{Name: "mid", Price: 95, Width: 1, Opacity: 1}); err != nil {
		t.Fatalf("AddLine() = %v; want nil", err)
	}
	ev = waitForEvent(t, events, func(ev Event) bool { return ev.Kind == EventLinesUpdated })
	if ev.UpdateKind != lineset.UpdateAdd || ev.CurrentCount != 3 {
		t.Fatalf("add event = %+v; want add with 3 lines", ev)
	}

	if err := h.eng.RemoveLine("mid"); err != nil {
		t.Fatalf("RemoveLine() = %v; want nil", err)
	}
	if err := h.eng.ClearLines(); err != nil {
		t.Fatalf("ClearLines() = %v; want nil", err)
	}
	if got := h.eng.Lines(); len(got.Lines) != 0 {
		t.Fatalf("Lines after clear = %d; want 0", len(got.Lines))
	}
}

func TestReplacedBatchRendersWhole(t *testing.T) {
	h := newHarness(t)

	batch := func(col string) []lineset.Line {
		lines := make([]lineset.Line, 0, 4)
		for i, price := range []float64{91, 93, 95, 97} {
			lines = append(lines, lineset.Line{Name: fmt.Sprintf("l%d", i), Price: price, Color: col, Width: 2, Opacity: 1})
		}
		return lines
	}

	if err := h.eng.Start(testHandle, batch("#FF0000"), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	waitFor(t, "first frame", func() bool { return surf.Commits() > 0 })

	// One writer flips the whole set between an all-red and an all-blue
	// batch while frames keep committing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			col := "#FF0000"
			if i%2 == 1 {
				col = "#0000FF"
			}
			if err := h.eng.ReplaceLines(batch(col)); err != nil {
				t.Errorf("ReplaceLines() = %v; want nil", err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	// Every committed frame must show exactly one batch: red strokes and
	// blue strokes never coexist.
	for sampling := true; sampling; {
		select {
		case <-done:
			sampling = false
		default:
		}
		frame := surf.LastFrame()
		if frame == nil {
			continue
		}
		var red, blue bool
		for i := 0; i+3 < len(frame.Pix); i += 4 {
			r, b := frame.Pix[i], frame.Pix[i+2]
			if r > 0 && b == 0 {
				red = true
			}
			if b > 0 && r == 0 {
				blue = true
			}
		}
		if red && blue {
			t.Fatal("committed frame mixes lines from two batches")
		}
	}
}

func TestSettersValidate(t *testing.T) {
	h := newHarness(t)

	errCode(t, h.eng.SetPriceRange(100, 90), winsys.CodeInvalidRange)
	errCode(t, h.eng.SetLineOpacity(1.5), winsys.CodeValidation)
	errCode(t, h.eng.SetLabelOpacity(-0.1), winsys.CodeValidation)

	if err := h.eng.SetPriceRange(50, 150); err != nil {
		t.Fatalf("SetPriceRange() = %v; want nil", err)
	}
	st := h.eng.Status()
	if st.PriceMin != 50 || st.PriceMax != 150 {
		t.Fatalf("Status price window = %v-%v; want 50-150", st.PriceMin, st.PriceMax)
	}
}

func TestUpdateTargetWindow(t *testing.T) {
	h := newHarness(t)
	other := winsys.Handle(11)
	h.fake.Put(other, winsys.Rect{X: 600, Y: 50, Width: 200, Height: 150}, true)

	errCode(t, h.eng.UpdateTargetWindow(other), winsys.CodeNotRunning)

	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	if err := h.eng.UpdateTargetWindow(other); err != nil {
		t.Fatalf("UpdateTargetWindow() = %v; want nil", err)
	}
	if got := h.eng.Status().TargetHandle; got != other {
		t.Fatalf("TargetHandle = %d; want %d", got, other)
	}

	surf := h.surface(t)
	waitFor(t, "surface at new target", func() bool { return surf.Bounds().X == 600 })
}

func TestStatsLifecycle(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	waitFor(t, "frames", func() bool { return surf.Commits() > 3 })

	stats := h.eng.PerformanceStats()
	if stats.DrawCount == 0 || stats.AvgDrawTimeMs < 0 {
		t.Fatalf("stats = %+v; want positive draw count", stats)
	}

	if err := h.eng.Stop(); err != nil {
		t.Fatalf("Stop() = %v; want nil", err)
	}
	if got := h.eng.PerformanceStats().DrawCount; got != 0 {
		t.Fatalf("DrawCount after Stop = %d; want 0", got)
	}
}

func TestHiddenTargetBlanksOverlayOnce(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Start(testHandle, testLines(), nil); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	surf := h.surface(t)
	waitFor(t, "first frame", func() bool { return surf.Commits() > 0 })

	h.fake.Put(testHandle, winsys.Rect{X: 100, Y: 100, Width: 400, Height: 300}, false)
	waitFor(t, "blank frame", func() bool {
		frame := surf.LastFrame()
		if frame == nil {
			return false
		}
		for _, p := range frame.Pix {
			if p != 0 {
				return false
			}
		}
		return true
	})
}
