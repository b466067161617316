//go:build windows

package surface

import (
	"image"
	"log/slog"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"

	"github.com/chartglass/overlay/internal/winsys"
)

const layeredClassName = "OverlayLayeredSurface"

var (
	registerClassOnce sync.Once
	registerClassErr  error
)

// canvas bundles the off-screen GDI resources for one frame size. Every
// acquisition in newCanvas is paired with a release in release(), which is
// safe to call on a partially constructed canvas.
type canvas struct {
	hdc    win.HDC
	bitmap win.HBITMAP
	oldBmp win.HGDIOBJ
	bits   unsafe.Pointer
	width  int
	height int
}

func newCanvas(width, height int) (*canvas, error) {
	c := &canvas{width: width, height: height}

	c.hdc = win.CreateCompatibleDC(0)
	if c.hdc == 0 {
		return nil, winsys.NewError(winsys.CodeSurfaceCreation, "CreateCompatibleDC failed", nil)
	}

	hdr := win.BITMAPINFOHEADER{
		BiWidth:    int32(width),
		BiHeight:   -int32(height), // top-down
		BiPlanes:   1,
		BiBitCount: 32,
	}
	hdr.BiSize = uint32(unsafe.Sizeof(hdr))

	c.bitmap = win.CreateDIBSection(c.hdc, &hdr, win.DIB_RGB_COLORS, &c.bits, 0, 0)
	if c.bitmap == 0 {
		c.release()
		return nil, winsys.NewError(winsys.CodeSurfaceCreation, "CreateDIBSection failed", nil)
	}
	c.oldBmp = win.SelectObject(c.hdc, win.HGDIOBJ(c.bitmap))
	return c, nil
}

// release frees every acquired handle. Fail-soft: one failed release is
// logged and the rest still run.
func (c *canvas) release() {
	if c == nil {
		return
	}
	if c.hdc != 0 && c.oldBmp != 0 {
		win.SelectObject(c.hdc, c.oldBmp)
		c.oldBmp = 0
	}
	if c.bitmap != 0 {
		if !win.DeleteObject(win.HGDIOBJ(c.bitmap)) {
			slog.Warn("layered surface: bitmap release failed")
		}
		c.bitmap = 0
	}
	if c.hdc != 0 {
		if !win.DeleteDC(c.hdc) {
			slog.Warn("layered surface: device context release failed")
		}
		c.hdc = 0
	}
	c.bits = nil
}

// write premultiplies the RGBA frame into the BGRA DIB bits.
func (c *canvas) write(frame *image.RGBA) {
	n := c.width * c.height
	dst := unsafe.Slice((*byte)(c.bits), n*4)
	src := frame.Pix
	for i := 0; i < n; i++ {
		r := uint32(src[i*4])
		g := uint32(src[i*4+1])
		b := uint32(src[i*4+2])
		a := uint32(src[i*4+3])
		dst[i*4] = byte(b * a / 255)
		dst[i*4+1] = byte(g * a / 255)
		dst[i*4+2] = byte(r * a / 255)
		dst[i*4+3] = byte(a)
	}
}

// layeredSurface is the Windows backend: a WS_EX_LAYERED popup committed via
// UpdateLayeredWindow, which publishes the whole frame atomically.
type layeredSurface struct {
	mu        sync.Mutex
	hwnd      win.HWND
	canvas    *canvas
	bounds    winsys.Rect
	alpha     byte
	destroyed bool
}

type layeredFactory struct{}

func newLayeredFactory() (Factory, error) {
	registerClassOnce.Do(registerLayeredClass)
	if registerClassErr != nil {
		return nil, registerClassErr
	}
	return &layeredFactory{}, nil
}

func registerLayeredClass() {
	className, _ := syscall.UTF16PtrFromString(layeredClassName)
	wc := win.WNDCLASSEX{
		LpfnWndProc:   syscall.NewCallback(layeredWndProc),
		HInstance:     win.GetModuleHandle(nil),
		LpszClassName: className,
	}
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	if win.RegisterClassEx(&wc) == 0 {
		registerClassErr = winsys.NewError(winsys.CodeSurfaceCreation, "RegisterClassEx failed", nil)
	}
}

func layeredWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// Create implements Factory.
func (f *layeredFactory) Create(initial winsys.Rect, alpha byte) (Surface, error) {
	className, _ := syscall.UTF16PtrFromString(layeredClassName)
	title, _ := syscall.UTF16PtrFromString("overlay")

	hwnd := win.CreateWindowEx(
		win.WS_EX_LAYERED|win.WS_EX_TRANSPARENT|win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW|win.WS_EX_NOACTIVATE,
		className, title, win.WS_POPUP,
		int32(initial.X), int32(initial.Y), int32(initial.Width), int32(initial.Height),
		0, 0, win.GetModuleHandle(nil), nil)
	if hwnd == 0 {
		return nil, winsys.NewError(winsys.CodeSurfaceCreation, "CreateWindowEx failed", nil)
	}

	s := &layeredSurface{hwnd: hwnd, bounds: initial, alpha: alpha}
	if !initial.Empty() {
		c, err := newCanvas(initial.Width, initial.Height)
		if err != nil {
			win.DestroyWindow(hwnd)
			return nil, err
		}
		s.canvas = c
	}

	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	return s, nil
}

// Reposition implements Surface.
func (s *layeredSurface) Reposition(r winsys.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}

	if (r.Width != s.bounds.Width || r.Height != s.bounds.Height) && !r.Empty() {
		next, err := newCanvas(r.Width, r.Height)
		if err != nil {
			return err
		}
		// The replacement is ready before the old buffer goes away, so a
		// concurrent commit never sees the surface without a buffer.
		s.canvas.release()
		s.canvas = next
	}
	s.bounds = r

	win.SetWindowPos(s.hwnd, win.HWND_TOPMOST,
		int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height),
		win.SWP_NOACTIVATE)
	return nil
}

// SetAlpha implements Surface.
func (s *layeredSurface) SetAlpha(a byte) error {
	s.mu.Lock()
	s.alpha = a
	s.mu.Unlock()
	return nil
}

// SetClickThrough implements Surface.
func (s *layeredSurface) SetClickThrough(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	style := win.GetWindowLong(s.hwnd, win.GWL_EXSTYLE)
	if enabled {
		style |= win.WS_EX_TRANSPARENT
	} else {
		style &^= win.WS_EX_TRANSPARENT
	}
	win.SetWindowLong(s.hwnd, win.GWL_EXSTYLE, style)
	return nil
}

// Commit implements Surface.
func (s *layeredSurface) Commit(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return winsys.NewError(winsys.CodeSurfaceCreation, "surface destroyed", nil)
	}
	if s.canvas == nil || s.bounds.Empty() {
		return winsys.NewError(winsys.CodeValidation, "surface has no buffer", nil)
	}
	if frame.Bounds().Dx() != s.canvas.width || frame.Bounds().Dy() != s.canvas.height {
		return winsys.NewError(winsys.CodeValidation, "frame does not match surface bounds", nil)
	}

	s.canvas.write(frame)

	pt := win.POINT{X: int32(s.bounds.X), Y: int32(s.bounds.Y)}
	size := win.SIZE{CX: int32(s.bounds.Width), CY: int32(s.bounds.Height)}
	src := win.POINT{}
	blend := win.BLENDFUNCTION{
		BlendOp:             win.AC_SRC_OVER,
		SourceConstantAlpha: s.alpha,
		AlphaFormat:         win.AC_SRC_ALPHA,
	}
	if !win.UpdateLayeredWindow(s.hwnd, 0, &pt, &size, s.canvas.hdc, &src, 0, &blend, win.ULW_ALPHA) {
		return winsys.NewError(winsys.CodeSurfaceCreation, "UpdateLayeredWindow failed", nil)
	}
	return nil
}

// Bounds implements Surface.
func (s *layeredSurface) Bounds() winsys.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// Destroy implements Surface. Idempotent; releases run even if creation was
// partial, and one failed release never blocks the rest.
func (s *layeredSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true

	s.canvas.release()
	s.canvas = nil
	if s.hwnd != 0 {
		if !win.DestroyWindow(s.hwnd) {
			slog.Warn("layered surface: DestroyWindow failed")
		}
		s.hwnd = 0
	}
	return nil
}
