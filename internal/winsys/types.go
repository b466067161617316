// Package winsys abstracts queries against external, unowned windows.
package winsys

import (
	"fmt"
	"time"
)

const (
	CodeValidation         = "VALIDATION"
	CodeInvalidHandle      = "INVALID_HANDLE"
	CodeInvalidRange       = "INVALID_RANGE"
	CodeSurfaceCreation    = "SURFACE_CREATION"
	CodeAlreadyRunning     = "ALREADY_RUNNING"
	CodeNotRunning         = "NOT_RUNNING"
	CodeTargetLost         = "TARGET_LOST"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError. The cause may be nil.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Handle identifies an external window. Zero is never valid. The concrete
// meaning is backend-specific: a native window handle or PID for the robotgo
// backend, a browser window ID for the CDP backend.
type Handle uint64

// Rect is a screen-space bounding box in device-independent pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no observable area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Bottom returns the Y coordinate of the lower edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Right returns the X coordinate of the right edge.
func (r Rect) Right() int { return r.X + r.Width }

// TargetState is the last known observation of a tracked window.
type TargetState struct {
	Rect      Rect      `json:"rect"`
	Visible   bool      `json:"visible"`
	ChangedAt time.Time `json:"changed_at"`
}

// Querier answers point-in-time questions about an external window. State
// must be cheap enough to call on a 100 ms cadence.
type Querier interface {
	// State returns the current bounds and visibility of the window. A
	// destroyed or inaccessible window yields a CodeInvalidHandle error.
	State(h Handle) (TargetState, error)
}

// Notifier is the optional asynchronous fast path. Backends that can deliver
// OS-level window events push observations into the channel; the tracker
// deduplicates them against its poll results.
type Notifier interface {
	// Watch registers interest in a handle and returns an unregister func.
	Watch(h Handle, ch chan<- TargetState) (func(), error)
}
