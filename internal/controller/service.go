// Package controller implements the control-plane service consumed by the
// HTTP API. It validates inputs, delegates to the overlay engine, and owns
// snapshot persistence.
package controller

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chartglass/overlay/internal/engine"
	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/render"
	"github.com/chartglass/overlay/internal/snapshot"
	"github.com/chartglass/overlay/internal/winsys"
)

// WindowFinder resolves candidate target windows by title substring. The
// fake and browser backends do not implement discovery; the field stays nil
// there and FindWindows reports the backend limitation.
type WindowFinder interface {
	FindByTitle(name string) ([]winsys.Handle, error)
}

// WindowInfo describes one discovered candidate window.
type WindowInfo struct {
	Handle  winsys.Handle `json:"handle"`
	Rect    winsys.Rect   `json:"rect"`
	Visible bool          `json:"visible"`
}

// Service wraps overlay engine operations for the control API.
type Service struct {
	eng     *engine.Engine
	querier winsys.Querier
	finder  WindowFinder
	snaps   *snapshot.Store
}

// NewService builds the control service. finder may be nil.
func NewService(eng *engine.Engine, querier winsys.Querier, finder WindowFinder, snaps *snapshot.Store) *Service {
	return &Service{eng: eng, querier: querier, finder: finder, snaps: snaps}
}

func requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return winsys.NewError(winsys.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// StartOverlay begins a session against the given window.
func (s *Service) StartOverlay(ctx context.Context, handle winsys.Handle, lines []lineset.Line, settings *render.Settings) (engine.Status, error) {
	if err := s.eng.Start(handle, lines, settings); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// StopOverlay ends the active session.
func (s *Service) StopOverlay(ctx context.Context) (engine.Status, error) {
	if err := s.eng.Stop(); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// PauseOverlay suspends drawing.
func (s *Service) PauseOverlay(ctx context.Context) (engine.Status, error) {
	if err := s.eng.Pause(); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// ResumeOverlay restarts drawing.
func (s *Service) ResumeOverlay(ctx context.Context) (engine.Status, error) {
	if err := s.eng.Resume(); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// GetStatus reports the engine condition.
func (s *Service) GetStatus(ctx context.Context) (engine.Status, error) {
	return s.eng.Status(), nil
}

// GetStats reports session performance counters.
func (s *Service) GetStats(ctx context.Context) (engine.PerformanceStats, error) {
	return s.eng.PerformanceStats(), nil
}

// SetTargetWindow re-targets the live session.
func (s *Service) SetTargetWindow(ctx context.Context, handle winsys.Handle) (engine.Status, error) {
	if err := s.eng.UpdateTargetWindow(handle); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// FindWindows lists candidate target windows matching a title substring.
func (s *Service) FindWindows(ctx context.Context, title string) ([]WindowInfo, error) {
	if err := requireNonEmpty(title, "title"); err != nil {
		return nil, err
	}
	if s.finder == nil {
		return nil, winsys.NewError(winsys.CodeBackendUnavailable, "window discovery not supported by this backend", nil)
	}
	handles, err := s.finder.FindByTitle(strings.TrimSpace(title))
	if err != nil {
		return nil, err
	}
	out := make([]WindowInfo, 0, len(handles))
	for _, h := range handles {
		st, err := s.querier.State(h)
		if err != nil {
			continue
		}
		out = append(out, WindowInfo{Handle: h, Rect: st.Rect, Visible: st.Visible})
	}
	return out, nil
}

// ListLines returns the current line set.
func (s *Service) ListLines(ctx context.Context) ([]lineset.Line, uint64, error) {
	snap := s.eng.Lines()
	return snap.Lines, snap.Revision, nil
}

// ReplaceLines swaps the whole batch atomically.
func (s *Service) ReplaceLines(ctx context.Context, lines []lineset.Line) ([]lineset.Line, uint64, error) {
	if err := s.eng.ReplaceLines(lines); err != nil {
		return nil, 0, err
	}
	snap := s.eng.Lines()
	return snap.Lines, snap.Revision, nil
}

// AddLine inserts or updates one line.
func (s *Service) AddLine(ctx context.Context, line lineset.Line) ([]lineset.Line, uint64, error) {
	if err := s.eng.AddLine(line); err != nil {
		return nil, 0, err
	}
	snap := s.eng.Lines()
	return snap.Lines, snap.Revision, nil
}

// RemoveLine deletes one line by name.
func (s *Service) RemoveLine(ctx context.Context, name string) error {
	if err := requireNonEmpty(name, "name"); err != nil {
		return err
	}
	return s.eng.RemoveLine(strings.TrimSpace(name))
}

// ClearLines empties the set.
func (s *Service) ClearLines(ctx context.Context) error {
	return s.eng.ClearLines()
}

// SetPriceRange swaps the mapped price window.
func (s *Service) SetPriceRange(ctx context.Context, min, max float64) (engine.Status, error) {
	if err := s.eng.SetPriceRange(min, max); err != nil {
		return engine.Status{}, err
	}
	return s.eng.Status(), nil
}

// SetCurrentPrice moves the live price marker.
func (s *Service) SetCurrentPrice(ctx context.Context, price float64) error {
	if price <= 0 {
		return winsys.NewError(winsys.CodeValidation, "price must be positive", nil)
	}
	s.eng.SetCurrentPrice(price)
	return nil
}

// GetRenderSettings returns the active pipeline settings.
func (s *Service) GetRenderSettings(ctx context.Context) (render.Settings, error) {
	return s.eng.Status().RenderSettings, nil
}

// SetRenderSettings replaces the pipeline settings.
func (s *Service) SetRenderSettings(ctx context.Context, settings render.Settings) (render.Settings, error) {
	s.eng.SetRenderSettings(settings)
	return s.eng.Status().RenderSettings, nil
}

// SetLineOpacity adjusts the global stroke opacity multiplier.
func (s *Service) SetLineOpacity(ctx context.Context, opacity float64) error {
	return s.eng.SetLineOpacity(opacity)
}

// SetLabelOpacity adjusts the label background opacity.
func (s *Service) SetLabelOpacity(ctx context.Context, opacity float64) error {
	return s.eng.SetLabelOpacity(opacity)
}

// SetWindowAlpha changes the whole-surface transparency.
func (s *Service) SetWindowAlpha(ctx context.Context, alpha int) error {
	if alpha < 0 || alpha > 255 {
		return winsys.NewError(winsys.CodeValidation, "alpha must be within 0-255", nil)
	}
	return s.eng.SetWindowAlpha(byte(alpha))
}

// SetWindowFollowing toggles target mirroring.
func (s *Service) SetWindowFollowing(ctx context.Context, enabled bool) (engine.Status, error) {
	s.eng.SetWindowFollowing(enabled)
	return s.eng.Status(), nil
}

// TakeFrameSnapshot stores the overlay's own rendered frame.
func (s *Service) TakeFrameSnapshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	frame, rect, err := s.eng.CaptureFrame()
	if err != nil {
		return snapshot.Meta{}, err
	}
	data, err := snapshot.EncodeFrame(frame)
	if err != nil {
		return snapshot.Meta{}, err
	}
	return s.persist(snapshot.KindFrame, data, rect, notes)
}

// TakeScreenSnapshot captures the on-screen target region, overlay included.
func (s *Service) TakeScreenSnapshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	rect, err := s.eng.TargetRect()
	if err != nil {
		return snapshot.Meta{}, err
	}
	data, err := snapshot.CaptureScreen(rect)
	if err != nil {
		return snapshot.Meta{}, err
	}
	return s.persist(snapshot.KindScreen, data, rect, notes)
}

func (s *Service) persist(kind string, data []byte, rect winsys.Rect, notes string) (snapshot.Meta, error) {
	status := s.eng.Status()
	meta := snapshot.Meta{
		ID:           uuid.New().String(),
		Kind:         kind,
		Format:       "png",
		Width:        rect.Width,
		Height:       rect.Height,
		SizeBytes:    len(data),
		CreatedAt:    time.Now().UTC(),
		TargetHandle: status.TargetHandle,
		TargetRect:   rect,
		LineCount:    status.LineCount,
		Revision:     s.eng.Lines().Revision,
		PriceMin:     status.PriceMin,
		PriceMax:     status.PriceMax,
		Notes:        notes,
	}
	if err := s.snaps.Save(meta, data); err != nil {
		return snapshot.Meta{}, err
	}
	return meta, nil
}

// ListSnapshots returns stored capture metadata, newest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) {
	return s.snaps.List()
}

// GetSnapshot returns one capture's metadata.
func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	return s.snaps.Get(id)
}

// ReadSnapshotImage returns the raw image bytes and format.
func (s *Service) ReadSnapshotImage(ctx context.Context, id string) ([]byte, string, error) {
	return s.snaps.ReadImage(id)
}

// DeleteSnapshot removes a stored capture.
func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	return s.snaps.Delete(id)
}
