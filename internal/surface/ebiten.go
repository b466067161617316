package surface

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/chartglass/overlay/internal/winsys"
)

// ebitenSurface is the cross-platform overlay backend. The window is
// undecorated, always-on-top, transparent, and mouse-passthrough; the game
// loop blits whatever frame was last committed.
type ebitenSurface struct {
	mu        sync.RWMutex
	bounds    winsys.Rect
	alpha     byte
	frame     []byte
	blit      *ebiten.Image
	destroyed bool

	readyCh chan struct{}
	ready   sync.Once
	doneCh  chan struct{}
	runErr  atomic.Value
}

type ebitenFactory struct {
	mu   sync.Mutex
	live *ebitenSurface
}

func newEbitenFactory() (Factory, error) {
	return &ebitenFactory{}, nil
}

// Create implements Factory. Ebiten drives a single game loop per process,
// so only one live surface is allowed at a time.
func (f *ebitenFactory) Create(initial winsys.Rect, alpha byte) (Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live != nil && !f.live.isDestroyed() {
		return nil, winsys.NewError(winsys.CodeSurfaceCreation, "an overlay surface is already live", nil)
	}

	s := &ebitenSurface{
		bounds:  initial,
		alpha:   alpha,
		readyCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if !initial.Empty() {
		s.frame = make([]byte, initial.Width*initial.Height*4)
	}

	ebiten.SetWindowTitle("overlay")
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetWindowMousePassthrough(true)
	ebiten.SetRunnableOnUnfocused(true)
	if !initial.Empty() {
		ebiten.SetWindowSize(initial.Width, initial.Height)
	}
	ebiten.SetWindowPosition(initial.X, initial.Y)

	go func() {
		opts := &ebiten.RunGameOptions{
			ScreenTransparent: true,
			InitUnfocused:     true,
			SkipTaskbar:       true,
		}
		if err := ebiten.RunGameWithOptions(s, opts); err != nil && err != ebiten.Termination {
			s.runErr.Store(err)
		}
		close(s.doneCh)
	}()

	// Wait for the first Draw so callers never commit into a window that
	// the compositor has not mapped yet.
	if err := s.awaitFirstDraw(); err != nil {
		return nil, err
	}

	f.live = s
	return s, nil
}

// awaitFirstDraw blocks until the window has drawn once or the game loop has
// died, whichever comes first. A loop that exits before drawing means the OS
// refused the window.
func (s *ebitenSurface) awaitFirstDraw() error {
	select {
	case <-s.readyCh:
		return nil
	case <-s.doneCh:
		err, _ := s.runErr.Load().(error)
		return winsys.NewError(winsys.CodeSurfaceCreation, "overlay window failed before first draw", err)
	}
}

func (s *ebitenSurface) isDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// Reposition implements Surface.
func (s *ebitenSurface) Reposition(r winsys.Rect) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	resized := r.Width != s.bounds.Width || r.Height != s.bounds.Height
	if resized && !r.Empty() {
		next := make([]byte, r.Width*r.Height*4)
		// Old buffer is replaced only once the new one exists.
		s.frame = next
	}
	s.bounds = r
	s.mu.Unlock()

	if resized && !r.Empty() {
		ebiten.SetWindowSize(r.Width, r.Height)
	}
	ebiten.SetWindowPosition(r.X, r.Y)
	return nil
}

// SetAlpha implements Surface. Alpha is applied as a whole-frame color scale
// during the blit.
func (s *ebitenSurface) SetAlpha(a byte) error {
	s.mu.Lock()
	s.alpha = a
	s.mu.Unlock()
	return nil
}

// SetClickThrough implements Surface.
func (s *ebitenSurface) SetClickThrough(enabled bool) error {
	ebiten.SetWindowMousePassthrough(enabled)
	return nil
}

// Commit implements Surface. The frame is copied under the lock; the game
// loop picks it up whole on its next Draw, so no partial frame is visible.
func (s *ebitenSurface) Commit(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	want := s.bounds.Width * s.bounds.Height * 4
	if len(frame.Pix) != want {
		return winsys.NewError(winsys.CodeValidation, "frame does not match surface bounds", nil)
	}
	if len(s.frame) != want {
		s.frame = make([]byte, want)
	}
	copy(s.frame, frame.Pix)
	return nil
}

// Bounds implements Surface.
func (s *ebitenSurface) Bounds() winsys.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

// Destroy implements Surface. The game loop observes the flag and returns
// ebiten.Termination on its next Update.
func (s *ebitenSurface) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// Update implements ebiten.Game.
func (s *ebitenSurface) Update() error {
	if s.isDestroyed() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game. The blit image is only ever touched here on
// the game loop goroutine, so it stays outside the lock.
func (s *ebitenSurface) Draw(screen *ebiten.Image) {
	s.ready.Do(func() { close(s.readyCh) })

	if s.blit == nil || s.blit.Bounds().Dx() != screen.Bounds().Dx() || s.blit.Bounds().Dy() != screen.Bounds().Dy() {
		next := ebiten.NewImage(screen.Bounds().Dx(), screen.Bounds().Dy())
		if s.blit != nil {
			s.blit.Deallocate()
		}
		s.blit = next
	}

	s.mu.RLock()
	w, h := s.bounds.Width, s.bounds.Height
	alpha := s.alpha
	if w == s.blit.Bounds().Dx() && h == s.blit.Bounds().Dy() && len(s.frame) == w*h*4 {
		s.blit.WritePixels(s.frame)
	}
	s.mu.RUnlock()

	opts := &ebiten.DrawImageOptions{}
	opts.ColorScale.ScaleAlpha(float32(alpha) / 255)
	screen.DrawImage(s.blit, opts)
}

// Layout implements ebiten.Game.
func (s *ebitenSurface) Layout(_, _ int) (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bounds.Empty() {
		return 1, 1
	}
	return s.bounds.Width, s.bounds.Height
}
