package snapshot

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chartglass/overlay/internal/winsys"
)

const testID = "123e4567-e89b-12d3-a456-426614174000"

func testMeta(id string) Meta {
	return Meta{
		ID:           id,
		Kind:         KindFrame,
		Format:       "png",
		Width:        400,
		Height:       300,
		SizeBytes:    4,
		CreatedAt:    time.Now().UTC(),
		TargetHandle: 42,
		TargetRect:   winsys.Rect{X: 100, Y: 100, Width: 400, Height: 300},
		LineCount:    3,
		Revision:     7,
		PriceMin:     90,
		PriceMax:     100,
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	meta := testMeta(testID)
	if err := store.Save(meta, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(testID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TargetHandle != meta.TargetHandle || got.Revision != meta.Revision || got.Kind != KindFrame {
		t.Fatalf("Get() = %+v; want %+v", got, meta)
	}

	data, format, err := store.ReadImage(testID)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if format != "png" || len(data) != 4 {
		t.Fatalf("ReadImage() = %d bytes, format %q; want 4 bytes, png", len(data), format)
	}
}

func TestSaveRejectsMalformedID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(Meta{ID: "../escape", Format: "png"}, nil); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	older := testMeta("123e4567-e89b-12d3-a456-426614174001")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testMeta("123e4567-e89b-12d3-a456-426614174002")

	if err := store.Save(older, []byte{0}); err != nil {
		t.Fatalf("Save(older) error = %v", err)
	}
	if err := store.Save(newer, []byte{0}); err != nil {
		t.Fatalf("Save(newer) error = %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List() returned %d metas; want 2", len(metas))
	}
	if metas[0].ID != newer.ID {
		t.Fatalf("List()[0].ID = %q; want %q", metas[0].ID, newer.ID)
	}
}

func TestDeleteRemovesBothFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Save(testMeta(testID), []byte{0}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.Delete(testID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	for _, name := range []string{testID + ".png", testID + ".json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s still present after Delete", name)
		}
	}
}

func TestEncodeFrameProducesPNG(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	frame.SetRGBA(2, 2, color.RGBA{255, 0, 0, 255})

	data, err := EncodeFrame(frame)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatalf("EncodeFrame() output is not a PNG header: % x", data[:8])
	}

	if _, err := EncodeFrame(nil); err == nil {
		t.Fatal("expected error for nil frame")
	}
}
