package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"

	"github.com/chartglass/overlay/internal/winsys"
)

// EncodeFrame PNG-encodes a rendered frame for storage.
func EncodeFrame(frame *image.RGBA) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("snapshot: nil frame")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("snapshot: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// CaptureScreen grabs the on-screen pixels of the target rectangle, overlay
// included, and returns them PNG-encoded.
func CaptureScreen(rect winsys.Rect) ([]byte, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("snapshot: empty capture rectangle")
	}
	img, err := screenshot.Capture(rect.X, rect.Y, rect.Width, rect.Height)
	if err != nil {
		return nil, fmt.Errorf("snapshot: screen capture: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("snapshot: encode capture: %w", err)
	}
	return buf.Bytes(), nil
}
