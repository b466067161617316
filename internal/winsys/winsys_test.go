package winsys

import (
	"errors"
	"testing"
)

func TestCodedErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(CodeSurfaceCreation, "surface failed", cause)

	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if coded.Code != CodeSurfaceCreation {
		t.Fatalf("Code = %s; want %s", coded.Code, CodeSurfaceCreation)
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not reach the cause")
	}
}

func TestRectHelpers(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 50}
	if r.Empty() {
		t.Fatal("Empty() = true for a real rect")
	}
	if got := r.Right(); got != 110 {
		t.Fatalf("Right() = %d; want 110", got)
	}
	if got := r.Bottom(); got != 70 {
		t.Fatalf("Bottom() = %d; want 70", got)
	}
	for _, empty := range []Rect{{}, {Width: 10}, {Height: 10}, {Width: -1, Height: 5}} {
		if !empty.Empty() {
			t.Fatalf("Empty() = false for %+v", empty)
		}
	}
}

func TestFakePutStateDestroy(t *testing.T) {
	f := NewFake()
	f.Put(1, Rect{X: 5, Y: 6, Width: 100, Height: 80}, true)

	st, err := f.State(1)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if st.Rect.X != 5 || !st.Visible {
		t.Fatalf("State() = %+v; want X=5 visible", st)
	}

	f.Destroy(1)
	if _, err := f.State(1); err == nil {
		t.Fatal("State() after Destroy = nil error; want error")
	}
}

func TestFakeWatchDelivery(t *testing.T) {
	f := NewFake()
	f.Put(1, Rect{Width: 10, Height: 10}, true)

	ch := make(chan TargetState, 4)
	unwatch, err := f.Watch(1, ch)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	f.Put(1, Rect{X: 3, Width: 10, Height: 10}, true)
	select {
	case st := <-ch:
		if st.Rect.X != 3 {
			t.Fatalf("watched state = %+v; want X=3", st)
		}
	default:
		t.Fatal("no observation delivered to watcher")
	}

	unwatch()
	f.Put(1, Rect{X: 9, Width: 10, Height: 10}, true)
	select {
	case st := <-ch:
		t.Fatalf("unwatched channel still received %+v", st)
	default:
	}
}
