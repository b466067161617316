package surface

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/chartglass/overlay/internal/winsys"
)

// Headless is an in-memory Surface used by tests and CI. It records commits
// so tests can inspect what would have reached the screen.
type Headless struct {
	mu           sync.Mutex
	bounds       winsys.Rect
	alpha        byte
	clickThrough bool
	destroyed    bool
	lastFrame    *image.RGBA

	commits     atomic.Uint64
	repositions atomic.Uint64
}

// HeadlessFactory creates Headless surfaces and remembers them for
// leak-check assertions.
type HeadlessFactory struct {
	mu      sync.Mutex
	created []*Headless
}

// NewHeadlessFactory returns a factory producing in-memory surfaces.
func NewHeadlessFactory() *HeadlessFactory {
	return &HeadlessFactory{}
}

// Create implements Factory.
func (f *HeadlessFactory) Create(initial winsys.Rect, alpha byte) (Surface, error) {
	s := &Headless{bounds: initial, alpha: alpha, clickThrough: true}
	f.mu.Lock()
	f.created = append(f.created, s)
	f.mu.Unlock()
	return s, nil
}

// Surfaces returns every surface this factory created, in creation order.
func (f *HeadlessFactory) Surfaces() []*Headless {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Headless(nil), f.created...)
}

// LiveCount returns how many created surfaces were not yet destroyed.
func (f *HeadlessFactory) LiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := 0
	for _, s := range f.created {
		s.mu.Lock()
		if !s.destroyed {
			live++
		}
		s.mu.Unlock()
	}
	return live
}

// Reposition implements Surface.
func (s *Headless) Reposition(r winsys.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	if r.Width != s.bounds.Width || r.Height != s.bounds.Height {
		// Buffer reallocation happens lazily on the next Commit.
		s.lastFrame = nil
	}
	s.bounds = r
	s.repositions.Add(1)
	return nil
}

// SetAlpha implements Surface.
func (s *Headless) SetAlpha(a byte) error {
	s.mu.Lock()
	s.alpha = a
	s.mu.Unlock()
	return nil
}

// SetClickThrough implements Surface.
func (s *Headless) SetClickThrough(enabled bool) error {
	s.mu.Lock()
	s.clickThrough = enabled
	s.mu.Unlock()
	return nil
}

// Commit implements Surface. The frame is copied, matching the real
// backends: the renderer reuses its scratch buffer, so a committed frame
// must not alias it.
func (s *Headless) Commit(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	s.lastFrame = &image.RGBA{
		Pix:    append([]uint8(nil), frame.Pix...),
		Stride: frame.Stride,
		Rect:   frame.Rect,
	}
	s.commits.Add(1)
	return nil
}

// Bounds implements Surface.
func (s *Headless) Bounds() winsys.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// Destroy implements Surface.
func (s *Headless) Destroy() error {
	s.mu.Lock()
	s.destroyed = true
	s.lastFrame = nil
	s.mu.Unlock()
	return nil
}

// LastFrame returns the most recently committed frame, for assertions.
func (s *Headless) LastFrame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrame
}

// Commits returns how many frames were committed.
func (s *Headless) Commits() uint64 { return s.commits.Load() }

// Repositions returns how many repositions were applied.
func (s *Headless) Repositions() uint64 { return s.repositions.Load() }

// ClickThrough reports the current input-transparency flag.
func (s *Headless) ClickThrough() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clickThrough
}
