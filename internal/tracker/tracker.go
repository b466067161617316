// Package tracker watches external windows and emits change events.
//
// Two producers feed one deduplicating diff stage: a fixed-interval poll over
// every tracked handle, and an optional OS notification fast path. The first
// observation of a logical change wins regardless of which channel carried
// it; an observation equal to the last emitted state is dropped, so the poll
// acts as a floor guarantee under a lossy fast path.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chartglass/overlay/internal/winsys"
)

// EventKind discriminates tracker events.
type EventKind string

const (
	PositionChanged   EventKind = "position_changed"
	SizeChanged       EventKind = "size_changed"
	VisibilityChanged EventKind = "visibility_changed"
	Destroyed         EventKind = "destroyed"
)

// Event describes one observed change of a tracked window.
type Event struct {
	Kind    EventKind
	Handle  winsys.Handle
	Old     winsys.Rect
	New     winsys.Rect
	Visible bool
	At      time.Time
}

// DefaultPollInterval is the poll cadence used when none is configured.
const DefaultPollInterval = 100 * time.Millisecond

type observation struct {
	handle winsys.Handle
	state  winsys.TargetState
	gone   bool
}

type watch struct {
	last     winsys.TargetState
	unwatch  func()
	stopFwd  chan struct{}
	haveLast bool
}

// Tracker watches a set of window handles.
type Tracker struct {
	querier  winsys.Querier
	notifier winsys.Notifier
	interval time.Duration

	mu      sync.Mutex
	watched map[winsys.Handle]*watch
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
	fwdWg   sync.WaitGroup

	obs    chan observation
	events chan Event
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithNotifier enables the asynchronous notification fast path.
func WithNotifier(n winsys.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// New builds a Tracker over the given window system.
func New(q winsys.Querier, opts ...Option) *Tracker {
	t := &Tracker{
		querier:  q,
		interval: DefaultPollInterval,
		watched:  make(map[winsys.Handle]*watch),
		obs:      make(chan observation, 64),
		events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Events returns the stream of deduplicated change events.
func (t *Tracker) Events() <-chan Event { return t.events }

// Start launches the poll loop and re-arms notification hooks that a
// previous Stop released. Safe to call once per Stop.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.done = make(chan struct{})
	t.wg.Add(1)
	go t.loop(t.done)
	for h, w := range t.watched {
		t.arm(h, w)
	}
}

// Stop halts the poll loop and unregisters all notification hooks. Tracked
// handles stay registered so a later Start resumes watching them.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	for _, w := range t.watched {
		disarm(w)
	}
	t.mu.Unlock()
	t.wg.Wait()
	t.fwdWg.Wait()
}

// Track validates the handle, captures an initial rectangle, and begins
// watching it.
func (t *Tracker) Track(h winsys.Handle) error {
	if h == 0 {
		return winsys.NewError(winsys.CodeInvalidHandle, "zero handle", nil)
	}
	st, err := t.querier.State(h)
	if err != nil {
		return winsys.NewError(winsys.CodeInvalidHandle, "window cannot be queried", err)
	}

	t.mu.Lock()
	if _, ok := t.watched[h]; ok {
		t.mu.Unlock()
		return nil
	}
	w := &watch{last: st, haveLast: true}
	t.watched[h] = w
	t.arm(h, w)
	t.mu.Unlock()

	slog.Info("tracker watching window", "handle", h, "rect", st.Rect, "visible", st.Visible)
	return nil
}

// Untrack stops watching a handle. Idempotent.
func (t *Tracker) Untrack(h winsys.Handle) {
	t.mu.Lock()
	w, ok := t.watched[h]
	if ok {
		delete(t.watched, h)
		disarm(w)
	}
	t.mu.Unlock()
	if ok {
		slog.Info("tracker released window", "handle", h)
	}
}

// arm registers the notification hook for one watch and starts its forward
// goroutine. Caller holds t.mu; arming an armed watch is a no-op.
func (t *Tracker) arm(h winsys.Handle, w *watch) {
	if t.notifier == nil || w.stopFwd != nil {
		return
	}
	forward := make(chan winsys.TargetState, 8)
	unwatch, err := t.notifier.Watch(h, forward)
	if err != nil {
		slog.Debug("tracker hook registration failed, poll only", "handle", h, "error", err)
		return
	}
	w.stopFwd = make(chan struct{})
	w.unwatch = unwatch
	t.fwdWg.Add(1)
	go t.forwardHook(h, forward, w.stopFwd)
}

func disarm(w *watch) {
	if w.unwatch != nil {
		w.unwatch()
		w.unwatch = nil
	}
	if w.stopFwd != nil {
		close(w.stopFwd)
		w.stopFwd = nil
	}
}

// Last returns the latest known state of a tracked handle.
func (t *Tracker) Last(h winsys.Handle) (winsys.TargetState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.watched[h]
	if !ok || !w.haveLast {
		return winsys.TargetState{}, false
	}
	return w.last, true
}

func (t *Tracker) forwardHook(h winsys.Handle, forward <-chan winsys.TargetState, stop <-chan struct{}) {
	defer t.fwdWg.Done()
	for {
		select {
		case st := <-forward:
			select {
			case t.obs <- observation{handle: h, state: st}:
			default:
				// The poll pass will pick the change up.
			}
		case <-stop:
			return
		}
	}
}

func (t *Tracker) loop(done chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case o := <-t.obs:
			t.apply(o)
		case <-ticker.C:
			t.pollOnce()
		}
	}
}

func (t *Tracker) pollOnce() {
	t.mu.Lock()
	handles := make([]winsys.Handle, 0, len(t.watched))
	for h := range t.watched {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	for _, h := range handles {
		st, err := t.querier.State(h)
		if err != nil {
			t.apply(observation{handle: h, gone: true})
			continue
		}
		t.apply(observation{handle: h, state: st})
	}
}

// apply diffs an observation against the last emitted state and publishes at
// most one event per changed aspect.
func (t *Tracker) apply(o observation) {
	t.mu.Lock()
	w, ok := t.watched[o.handle]
	if !ok {
		t.mu.Unlock()
		return
	}

	if o.gone {
		last := w.last
		delete(t.watched, o.handle)
		disarm(w)
		t.mu.Unlock()
		t.emit(Event{Kind: Destroyed, Handle: o.handle, Old: last.Rect, At: time.Now()})
		return
	}

	last := w.last
	hadLast := w.haveLast
	w.last = o.state
	w.haveLast = true
	t.mu.Unlock()

	if !hadLast {
		return
	}

	now := o.state.ChangedAt
	if now.IsZero() {
		now = time.Now()
	}

	if last.Visible != o.state.Visible {
		t.emit(Event{Kind: VisibilityChanged, Handle: o.handle, Old: last.Rect, New: o.state.Rect, Visible: o.state.Visible, At: now})
	}
	if last.Rect.X != o.state.Rect.X || last.Rect.Y != o.state.Rect.Y {
		t.emit(Event{Kind: PositionChanged, Handle: o.handle, Old: last.Rect, New: o.state.Rect, Visible: o.state.Visible, At: now})
	}
	if last.Rect.Width != o.state.Rect.Width || last.Rect.Height != o.state.Rect.Height {
		t.emit(Event{Kind: SizeChanged, Handle: o.handle, Old: last.Rect, New: o.state.Rect, Visible: o.state.Visible, At: now})
	}
}

func (t *Tracker) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		slog.Debug("tracker event dropped, consumer lagging", "kind", ev.Kind, "handle", ev.Handle)
	}
}
