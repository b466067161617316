// Package surface owns the borderless, click-through, topmost drawing
// surface that mirrors the target window.
package surface

import (
	"fmt"
	"image"

	"github.com/chartglass/overlay/internal/winsys"
)

// Surface is one live overlay window plus its off-screen compositing buffer.
// Implementations must keep at most one live buffer and pair every native
// resource acquisition with a release on all exit paths.
type Surface interface {
	// Reposition moves/resizes the surface. When dimensions change the
	// off-screen buffer is reallocated; the old buffer is dropped only
	// after the replacement exists, so no frame shows a torn surface.
	Reposition(r winsys.Rect) error

	// SetAlpha applies whole-surface transparency (0 clear, 255 opaque).
	SetAlpha(a byte) error

	// SetClickThrough toggles input transparency. On by default; turning
	// it off is a debugging aid only.
	SetClickThrough(enabled bool) error

	// Commit publishes a composed frame to the visible surface in one
	// atomic operation. The frame must match the surface bounds.
	Commit(frame *image.RGBA) error

	// Bounds returns the surface's current screen rectangle.
	Bounds() winsys.Rect

	// Destroy releases the native window and every associated handle.
	// Idempotent and fail-soft: a failed release is reported once but
	// does not stop the remaining releases.
	Destroy() error
}

// Factory creates surfaces. The engine holds a factory rather than a
// surface so an aborted start leaves nothing behind.
type Factory interface {
	Create(initial winsys.Rect, alpha byte) (Surface, error)
}

// Backend names selectable via configuration.
const (
	BackendEbiten   = "ebiten"
	BackendLayered  = "layered"
	BackendHeadless = "headless"
)

// NewFactory returns the factory for a named backend.
func NewFactory(backend string) (Factory, error) {
	switch backend {
	case BackendEbiten:
		return newEbitenFactory()
	case BackendLayered:
		return newLayeredFactory()
	case BackendHeadless:
		return NewHeadlessFactory(), nil
	}
	return nil, winsys.NewError(winsys.CodeBackendUnavailable,
		fmt.Sprintf("unknown surface backend %q", backend), nil)
}
