package winsys

import (
	"time"

	"github.com/go-vgo/robotgo"
)

// Native queries external windows through robotgo. Handles are the OS
// process ids owning the target window, which is what robotgo keys its
// window queries on across platforms.
type Native struct{}

// NewNative returns the robotgo-backed Querier.
func NewNative() *Native { return &Native{} }

// FindByTitle resolves candidate handles whose window title contains name.
func (n *Native) FindByTitle(name string) ([]Handle, error) {
	ids, err := robotgo.FindIds(name)
	if err != nil {
		return nil, NewError(CodeInvalidHandle, "window lookup failed", err)
	}
	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, Handle(id))
	}
	return handles, nil
}

// State implements Querier.
func (n *Native) State(h Handle) (TargetState, error) {
	if h == 0 {
		return TargetState{}, NewError(CodeInvalidHandle, "zero handle", nil)
	}
	pid := int(h)
	alive, err := robotgo.PidExists(pid)
	if err != nil {
		return TargetState{}, NewError(CodeInvalidHandle, "process query failed", err)
	}
	if !alive {
		return TargetState{}, NewError(CodeInvalidHandle, "target process gone", nil)
	}

	x, y, w, ht := robotgo.GetBounds(pid)
	rect := Rect{X: x, Y: y, Width: w, Height: ht}
	return TargetState{
		Rect: rect,
		// A minimized or hidden window reports a degenerate rectangle.
		Visible:   !rect.Empty(),
		ChangedAt: time.Now(),
	}, nil
}
