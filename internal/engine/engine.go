// Package engine orchestrates the overlay: it wires the target tracker, the
// surface manager, and the rendering pipeline on a periodic cadence and
// exposes the session lifecycle and line mutations.
package engine

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/pricemap"
	"github.com/chartglass/overlay/internal/render"
	"github.com/chartglass/overlay/internal/surface"
	"github.com/chartglass/overlay/internal/tracker"
	"github.com/chartglass/overlay/internal/winsys"
)

// State names the orchestrator's lifecycle phases.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// Options configure one engine instance.
type Options struct {
	RefreshRate  int           // target frames per second
	PollInterval time.Duration // tracker poll cadence
	WindowAlpha  byte          // whole-surface alpha
	Following    bool          // mirror target moves/resizes
	PriceMin     float64       // price window lower bound
	PriceMax     float64       // price window upper bound
	Render       render.Settings
}

// DefaultOptions mirror the documented configuration defaults.
func DefaultOptions() Options {
	return Options{
		RefreshRate:  30,
		PollInterval: tracker.DefaultPollInterval,
		WindowAlpha:  230,
		Following:    true,
		PriceMin:     1,
		PriceMax:     100,
		Render:       render.DefaultSettings(),
	}
}

// session bundles everything owned by one start/stop cycle.
type session struct {
	handle     winsys.Handle
	surf       surface.Surface
	trk        *tracker.Tracker
	done       chan struct{}
	refresh    chan struct{}
	wg         sync.WaitGroup
	targetLost atomic.Bool
	wasVisible bool // tick goroutine only
}

// Engine is the overlay orchestrator. Dependencies are injected explicitly;
// there is no process-wide registry.
type Engine struct {
	querier  winsys.Querier
	notifier winsys.Notifier
	factory  surface.Factory
	hub      *Hub
	lines    *lineset.Set
	stats    *statsCollector

	mu       sync.Mutex // state machine + session + option fields
	state    State
	sess     *session
	opts     Options
	disposed bool

	paused    atomic.Bool
	following atomic.Bool

	renderMu     sync.Mutex // pipeline + mapper + current price
	pipeline     *render.Pipeline
	mapper       *pricemap.Mapper
	currentPrice float64
}

// New builds a stopped engine. The notifier may be nil; every other
// dependency is required.
func New(q winsys.Querier, f surface.Factory, hub *Hub, opts Options, notifier winsys.Notifier) (*Engine, error) {
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 30
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = tracker.DefaultPollInterval
	}
	m, err := pricemap.NewMapper(opts.PriceMin, opts.PriceMax)
	if err != nil {
		return nil, winsys.NewError(winsys.CodeInvalidRange, "price window rejected", err)
	}

	e := &Engine{
		querier:  q,
		notifier: notifier,
		factory:  f,
		hub:      hub,
		lines:    lineset.New(),
		stats:    newStatsCollector(),
		state:    StateStopped,
		opts:     opts,
		mapper:   m,
		pipeline: render.New(m, opts.Render),
	}
	e.following.Store(opts.Following)
	return e, nil
}

// Events exposes the engine's event hub.
func (e *Engine) Events() *Hub { return e.hub }

// Start validates the target, creates the surface, begins tracking, and
// launches the render tick. An aborted start releases every partially
// acquired resource and leaves the engine fully stopped.
func (e *Engine) Start(handle winsys.Handle, lines []lineset.Line, settings *render.Settings) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeNotRunning, "engine disposed", nil)
	}
	if e.state != StateStopped {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeAlreadyRunning, fmt.Sprintf("cannot start from state %q", e.state), nil)
	}
	e.state = StateStarting
	opts := e.opts
	e.mu.Unlock()

	abort := func(err error) error {
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
		return err
	}

	if handle == 0 {
		return abort(winsys.NewError(winsys.CodeInvalidHandle, "zero handle", nil))
	}
	initial, err := e.querier.State(handle)
	if err != nil {
		return abort(winsys.NewError(winsys.CodeInvalidHandle, "target window cannot be queried", err))
	}

	if _, err := e.lines.Replace(lines); err != nil {
		return abort(err)
	}
	if settings != nil {
		e.renderMu.Lock()
		e.pipeline.Configure(*settings)
		e.renderMu.Unlock()
		e.mu.Lock()
		e.opts.Render = *settings
		e.mu.Unlock()
	}

	trkOpts := []tracker.Option{tracker.WithInterval(opts.PollInterval)}
	if e.notifier != nil {
		trkOpts = append(trkOpts, tracker.WithNotifier(e.notifier))
	}
	trk := tracker.New(e.querier, trkOpts...)
	if err := trk.Track(handle); err != nil {
		return abort(err)
	}

	surf, err := e.factory.Create(initial.Rect, opts.WindowAlpha)
	if err != nil {
		trk.Untrack(handle)
		return abort(winsys.NewError(winsys.CodeSurfaceCreation, "overlay surface creation failed", err))
	}

	s := &session{
		handle:  handle,
		surf:    surf,
		trk:     trk,
		done:    make(chan struct{}),
		refresh: make(chan struct{}, 1),
	}

	trk.Start()
	e.paused.Store(false)
	e.stats.sessionStarted()

	s.wg.Add(2)
	go e.tickLoop(s, time.Second/time.Duration(opts.RefreshRate))
	go e.eventLoop(s)

	e.mu.Lock()
	e.sess = s
	e.state = StateRunning
	e.mu.Unlock()

	slog.Info("engine started", "handle", handle, "rect", initial.Rect, "lines", len(lines), "refresh_rate", opts.RefreshRate)
	e.hub.Publish(Event{Kind: EventDrawingState, Running: true, Description: "overlay started"})
	e.hub.Publish(Event{Kind: EventFollowingState, FollowingEnabled: e.following.Load(), TargetHandle: handle, Description: "target tracking started"})
	return nil
}

// Stop tears the session down. Idempotent; stopping a stopped engine is a
// no-op, not an error. A session still coming up cannot be stopped: Start
// owns the resources until it promotes to running.
func (e *Engine) Stop() error {
	return e.stop("overlay stopped")
}

func (e *Engine) stop(reason string) error {
	e.mu.Lock()
	if e.state == StateStopped || e.state == StateStopping {
		e.mu.Unlock()
		return nil
	}
	if e.state == StateStarting {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeAlreadyRunning, "session start in progress", nil)
	}
	e.state = StateStopping
	s := e.sess
	e.sess = nil
	e.mu.Unlock()

	if s != nil {
		e.teardown(s)
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	slog.Info("engine stopped", "reason", reason)
	e.hub.Publish(Event{Kind: EventDrawingState, Running: false, Description: reason})
	return nil
}

// teardown releases session resources fail-soft: one failed release is
// reported and the rest still run.
func (e *Engine) teardown(s *session) {
	close(s.done)
	s.wg.Wait()

	s.trk.Stop()
	s.trk.Untrack(s.handle)
	if err := s.surf.Destroy(); err != nil {
		slog.Warn("engine surface destroy failed", "error", err)
	}
	e.stats.reset()
	e.paused.Store(false)
}

// Pause suspends frame production without touching the surface or tracker.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeNotRunning, fmt.Sprintf("cannot pause from state %q", e.state), nil)
	}
	e.state = StatePaused
	e.mu.Unlock()

	e.paused.Store(true)
	e.hub.Publish(Event{Kind: EventDrawingState, Running: false, Description: "overlay paused"})
	return nil
}

// Resume restarts frame production within one tick interval.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeNotRunning, fmt.Sprintf("cannot resume from state %q", e.state), nil)
	}
	e.state = StateRunning
	s := e.sess
	e.mu.Unlock()

	e.paused.Store(false)
	if s != nil {
		kick(s.refresh)
	}
	e.hub.Publish(Event{Kind: EventDrawingState, Running: true, Description: "overlay resumed"})
	return nil
}

// UpdateTargetWindow re-targets a running session without a stop/start.
func (e *Engine) UpdateTargetWindow(handle winsys.Handle) error {
	if handle == 0 {
		return winsys.NewError(winsys.CodeInvalidHandle, "zero handle", nil)
	}
	st, err := e.querier.State(handle)
	if err != nil {
		return winsys.NewError(winsys.CodeInvalidHandle, "replacement window cannot be queried", err)
	}

	e.mu.Lock()
	if e.state != StateRunning && e.state != StatePaused {
		e.mu.Unlock()
		return winsys.NewError(winsys.CodeNotRunning, "no active session to re-target", nil)
	}
	s := e.sess
	old := s.handle
	e.mu.Unlock()

	if err := s.trk.Track(handle); err != nil {
		return err
	}
	s.trk.Untrack(old)

	e.mu.Lock()
	s.handle = handle
	e.mu.Unlock()

	if err := s.surf.Reposition(st.Rect); err != nil {
		slog.Warn("engine reposition after re-target failed", "error", err)
	}
	kick(s.refresh)

	slog.Info("engine re-targeted", "old", old, "new", handle)
	e.hub.Publish(Event{Kind: EventFollowingState, FollowingEnabled: e.following.Load(), TargetHandle: handle, Description: "target window replaced"})
	return nil
}

// tickLoop produces frames at the configured cadence plus out-of-cycle
// refresh kicks. Cancellation is cooperative: flags are consulted at the
// top of each tick and an in-flight frame always finishes.
func (e *Engine) tickLoop(s *session, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		case <-s.refresh:
		}

		if s.targetLost.Load() {
			// Finish the session from outside this goroutine; stop waits
			// on the tick loop's WaitGroup entry.
			go func() {
				_ = e.stop("target window destroyed")
			}()
			return
		}
		if e.paused.Load() {
			continue
		}
		e.renderFrame(s)
	}
}

// renderFrame composes and commits one frame. Failures are logged and
// skipped; nothing may panic out of the periodic tick.
func (e *Engine) renderFrame(s *session) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine render tick panic recovered", "panic", r)
		}
	}()

	st, ok := s.trk.Last(s.currentHandle(e))
	if !ok {
		return
	}
	bounds := s.surf.Bounds()

	if !st.Visible || st.Rect.Empty() || bounds.Empty() {
		// Blank the overlay once so stale lines do not float over
		// whatever replaced the hidden target.
		if s.wasVisible && !bounds.Empty() {
			clear := image.NewRGBA(image.Rect(0, 0, bounds.Width, bounds.Height))
			if err := s.surf.Commit(clear); err != nil {
				slog.Debug("engine blank commit failed", "error", err)
			}
			s.wasVisible = false
		}
		return
	}

	start := time.Now()

	e.renderMu.Lock()
	frame, drawn := e.pipeline.Render(render.Input{
		Lines:        e.lines.Snapshot(),
		Rect:         bounds,
		CurrentPrice: e.currentPrice,
	})
	e.renderMu.Unlock()

	if !drawn {
		return
	}
	if err := s.surf.Commit(frame); err != nil {
		slog.Warn("engine frame commit failed", "error", err)
		return
	}
	s.wasVisible = true
	e.stats.recordFrame(time.Since(start))
}

func (s *session) currentHandle(e *Engine) winsys.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.handle
}

// eventLoop applies tracker events out-of-band relative to the render tick.
func (e *Engine) eventLoop(s *session) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.trk.Events():
			e.handleTrackerEvent(s, ev)
		}
	}
}

func (e *Engine) handleTrackerEvent(s *session, ev tracker.Event) {
	switch ev.Kind {
	case tracker.Destroyed:
		slog.Info("engine target destroyed", "handle", ev.Handle)
		s.targetLost.Store(true)
		kick(s.refresh)
	case tracker.PositionChanged, tracker.SizeChanged:
		if !e.following.Load() {
			return
		}
		if err := s.surf.Reposition(ev.New); err != nil {
			slog.Warn("engine reposition failed", "rect", ev.New, "error", err)
			return
		}
		e.stats.recordReposition()
		kick(s.refresh)
	case tracker.VisibilityChanged:
		slog.Debug("engine target visibility changed", "visible", ev.Visible)
		kick(s.refresh)
	}
}

// kick requests an out-of-cycle refresh without blocking.
func kick(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
