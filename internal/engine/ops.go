package engine

import (
	"image"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/pricemap"
	"github.com/chartglass/overlay/internal/render"
	"github.com/chartglass/overlay/internal/winsys"
)

// Status is the externally visible engine condition.
type Status struct {
	State          State           `json:"state"`
	TargetHandle   winsys.Handle   `json:"target_handle,omitempty"`
	Following      bool            `json:"following"`
	LineCount      int             `json:"line_count"`
	PriceMin       float64         `json:"price_min"`
	PriceMax       float64         `json:"price_max"`
	CurrentPrice   float64         `json:"current_price,omitempty"`
	RefreshRate    int             `json:"refresh_rate"`
	WindowAlpha    byte            `json:"window_alpha"`
	RenderSettings render.Settings `json:"render_settings"`
}

// Status reports the current state without touching the render tick.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		State:          e.state,
		Following:      e.following.Load(),
		RefreshRate:    e.opts.RefreshRate,
		WindowAlpha:    e.opts.WindowAlpha,
		RenderSettings: e.opts.Render,
	}
	if e.sess != nil {
		st.TargetHandle = e.sess.handle
	}
	e.mu.Unlock()

	e.renderMu.Lock()
	st.PriceMin = e.mapper.Min()
	st.PriceMax = e.mapper.Max()
	st.CurrentPrice = e.currentPrice
	e.renderMu.Unlock()

	st.LineCount = e.lines.Len()
	return st
}

// PerformanceStats snapshots the session counters.
func (e *Engine) PerformanceStats() PerformanceStats {
	return e.stats.snapshot()
}

// Lines returns the current line snapshot.
func (e *Engine) Lines() lineset.Snapshot {
	return e.lines.Snapshot()
}

// ReplaceLines installs a whole new batch atomically. The next committed
// frame shows the new batch in full; no frame mixes old and new lines.
func (e *Engine) ReplaceLines(lines []lineset.Line) error {
	m, err := e.lines.Replace(lines)
	if err != nil {
		return err
	}
	e.publishLines(m, "line batch replaced")
	return nil
}

// AddLine inserts or updates one line by name.
func (e *Engine) AddLine(line lineset.Line) error {
	m, err := e.lines.Add(line)
	if err != nil {
		return err
	}
	e.publishLines(m, "line added")
	return nil
}

// RemoveLine deletes a line; absent names are a no-op.
func (e *Engine) RemoveLine(name string) error {
	m := e.lines.Remove(name)
	e.publishLines(m, "line removed")
	return nil
}

// ClearLines empties the set.
func (e *Engine) ClearLines() error {
	m := e.lines.Clear()
	e.publishLines(m, "lines cleared")
	return nil
}

func (e *Engine) publishLines(m lineset.Mutation, desc string) {
	e.hub.Publish(Event{
		Kind:          EventLinesUpdated,
		Description:   desc,
		PreviousCount: m.PreviousCount,
		CurrentCount:  m.CurrentCount,
		UpdateKind:    m.Kind,
	})
	e.requestRefresh()
}

// SetPriceRange swaps the price window used by the vertical mapping. The
// change takes effect on the next frame.
func (e *Engine) SetPriceRange(min, max float64) error {
	m, err := pricemap.NewMapper(min, max)
	if err != nil {
		return winsys.NewError(winsys.CodeInvalidRange, "price window rejected", err)
	}
	e.renderMu.Lock()
	e.mapper = m
	e.pipeline.SetMapper(m)
	e.renderMu.Unlock()
	e.requestRefresh()
	return nil
}

// SetCurrentPrice updates the live price marker.
func (e *Engine) SetCurrentPrice(price float64) {
	e.renderMu.Lock()
	e.currentPrice = price
	e.renderMu.Unlock()
	e.requestRefresh()
}

// SetRenderSettings replaces the pipeline settings wholesale.
func (e *Engine) SetRenderSettings(s render.Settings) {
	e.renderMu.Lock()
	e.pipeline.Configure(s)
	e.renderMu.Unlock()
	e.mu.Lock()
	e.opts.Render = s
	e.mu.Unlock()
	e.requestRefresh()
}

// SetLineOpacity adjusts only the stroke opacity multiplier.
func (e *Engine) SetLineOpacity(opacity float64) error {
	if opacity < 0 || opacity > 1 {
		return winsys.NewError(winsys.CodeValidation, "line opacity must be within 0-1", nil)
	}
	e.renderMu.Lock()
	s := e.pipeline.Settings()
	s.LineOpacity = opacity
	e.pipeline.Configure(s)
	e.renderMu.Unlock()
	e.requestRefresh()
	return nil
}

// SetLabelOpacity adjusts only the label background opacity.
func (e *Engine) SetLabelOpacity(opacity float64) error {
	if opacity < 0 || opacity > 1 {
		return winsys.NewError(winsys.CodeValidation, "label opacity must be within 0-1", nil)
	}
	e.renderMu.Lock()
	s := e.pipeline.Settings()
	s.LabelOpacity = opacity
	e.pipeline.Configure(s)
	e.renderMu.Unlock()
	e.requestRefresh()
	return nil
}

// SetWindowAlpha changes the whole-surface alpha of the live session and is
// remembered for future sessions.
func (e *Engine) SetWindowAlpha(alpha byte) error {
	e.mu.Lock()
	e.opts.WindowAlpha = alpha
	s := e.sess
	e.mu.Unlock()

	if s != nil {
		if err := s.surf.SetAlpha(alpha); err != nil {
			return err
		}
	}
	e.requestRefresh()
	return nil
}

// SetWindowFollowing toggles whether the overlay mirrors target moves and
// resizes. Turning it back on snaps the surface to the target immediately.
func (e *Engine) SetWindowFollowing(enabled bool) {
	prev := e.following.Swap(enabled)
	if prev == enabled {
		return
	}

	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()

	var handle winsys.Handle
	if s != nil {
		handle = s.handle
		if enabled {
			if st, ok := s.trk.Last(s.handle); ok && !st.Rect.Empty() {
				if err := s.surf.Reposition(st.Rect); err == nil {
					e.stats.recordReposition()
				}
			}
		}
	}

	desc := "window following disabled"
	if enabled {
		desc = "window following enabled"
	}
	e.hub.Publish(Event{Kind: EventFollowingState, FollowingEnabled: enabled, TargetHandle: handle, Description: desc})
	e.requestRefresh()
}

// CaptureFrame renders one frame out of band and returns a private copy.
// The session's surface is not touched.
func (e *Engine) CaptureFrame() (*image.RGBA, winsys.Rect, error) {
	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()
	if s == nil {
		return nil, winsys.Rect{}, winsys.NewError(winsys.CodeNotRunning, "no active session", nil)
	}
	bounds := s.surf.Bounds()

	e.renderMu.Lock()
	frame, drawn := e.pipeline.Render(render.Input{
		Lines:        e.lines.Snapshot(),
		Rect:         bounds,
		CurrentPrice: e.currentPrice,
	})
	var clone *image.RGBA
	if drawn {
		clone = image.NewRGBA(frame.Rect)
		copy(clone.Pix, frame.Pix)
	}
	e.renderMu.Unlock()

	if clone == nil {
		return nil, winsys.Rect{}, winsys.NewError(winsys.CodeValidation, "nothing to capture", nil)
	}
	return clone, bounds, nil
}

// TargetRect reports the last known rectangle of the tracked window.
func (e *Engine) TargetRect() (winsys.Rect, error) {
	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()
	if s == nil {
		return winsys.Rect{}, winsys.NewError(winsys.CodeNotRunning, "no active session", nil)
	}
	st, ok := s.trk.Last(s.handle)
	if !ok {
		return winsys.Rect{}, winsys.NewError(winsys.CodeTargetLost, "target state unknown", nil)
	}
	return st.Rect, nil
}

// requestRefresh kicks the live session's tick loop, if any.
func (e *Engine) requestRefresh() {
	e.mu.Lock()
	s := e.sess
	e.mu.Unlock()
	if s != nil {
		kick(s.refresh)
	}
}
