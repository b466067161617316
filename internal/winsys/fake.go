package winsys

import (
	"sync"
	"time"
)

// Fake is an in-memory Querier/Notifier used by tests and the headless demo
// mode. Windows are registered up front and mutated by the test to simulate
// moves, hides, and destruction.
type Fake struct {
	mu       sync.Mutex
	windows  map[Handle]TargetState
	watchers map[Handle][]chan<- TargetState
}

// NewFake returns an empty fake window system.
func NewFake() *Fake {
	return &Fake{
		windows:  make(map[Handle]TargetState),
		watchers: make(map[Handle][]chan<- TargetState),
	}
}

// Put registers or updates a window and pushes the observation to watchers.
func (f *Fake) Put(h Handle, rect Rect, visible bool) {
	f.mu.Lock()
	st := TargetState{Rect: rect, Visible: visible, ChangedAt: time.Now()}
	f.windows[h] = st
	watchers := append([]chan<- TargetState(nil), f.watchers[h]...)
	f.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- st:
		default:
		}
	}
}

// Destroy removes a window so subsequent State calls fail.
func (f *Fake) Destroy(h Handle) {
	f.mu.Lock()
	delete(f.windows, h)
	f.mu.Unlock()
}

// State implements Querier.
func (f *Fake) State(h Handle) (TargetState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.windows[h]
	if !ok {
		return TargetState{}, NewError(CodeInvalidHandle, "window not found", nil)
	}
	return st, nil
}

// Watch implements Notifier.
func (f *Fake) Watch(h Handle, ch chan<- TargetState) (func(), error) {
	f.mu.Lock()
	f.watchers[h] = append(f.watchers[h], ch)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		chans := f.watchers[h]
		for i, c := range chans {
			if c == ch {
				f.watchers[h] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}, nil
}
