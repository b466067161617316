package lineset

import (
	"testing"
)

func validLine(name string, price float64) Line {
	return Line{Name: name, Price: price, Color: "#00FF00", Width: 2, Opacity: 1}
}

func TestValidateDefaults(t *testing.T) {
	l := validLine("support", 95)
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate() = %v; want nil", err)
	}
	if l.Style != StyleSolid {
		t.Fatalf("Style defaulted to %q; want %q", l.Style, StyleSolid)
	}
	if l.Anchor != AnchorRight {
		t.Fatalf("Anchor defaulted to %q; want %q", l.Anchor, AnchorRight)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		line Line
	}{
		{"empty name", Line{Price: 10, Width: 1, Opacity: 1}},
		{"zero price", Line{Name: "a", Width: 1, Opacity: 1}},
		{"negative price", Line{Name: "a", Price: -5, Width: 1, Opacity: 1}},
		{"width too small", Line{Name: "a", Price: 1, Width: 0.5, Opacity: 1}},
		{"width too big", Line{Name: "a", Price: 1, Width: 11, Opacity: 1}},
		{"opacity too big", Line{Name: "a", Price: 1, Width: 1, Opacity: 1.5}},
		{"bad style", Line{Name: "a", Price: 1, Width: 1, Opacity: 1, Style: "wavy"}},
		{"bad anchor", Line{Name: "a", Price: 1, Width: 1, Opacity: 1, Anchor: "center"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := tc.line
			if err := l.Validate(); err == nil {
				t.Fatalf("Validate() = nil; want error")
			}
		})
	}
}

func TestReplaceBumpsRevisionOnce(t *testing.T) {
	s := New()
	m, err := s.Replace([]Line{validLine("a", 10), validLine("b", 20)})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if m.Kind != UpdateBatch || m.PreviousCount != 0 || m.CurrentCount != 2 {
		t.Fatalf("Replace() mutation = %+v; want batch 0->2", m)
	}

	snap := s.Snapshot()
	if snap.Revision != m.Revision {
		t.Fatalf("Snapshot().Revision = %d; want %d", snap.Revision, m.Revision)
	}
	if len(snap.Lines) != 2 {
		t.Fatalf("Snapshot() has %d lines; want 2", len(snap.Lines))
	}
}

func TestReplaceRejectsDuplicates(t *testing.T) {
	s := New()
	if _, err := s.Replace([]Line{validLine("a", 10), validLine("a", 20)}); err == nil {
		t.Fatal("Replace() with duplicate names = nil; want error")
	}
	if s.Len() != 0 {
		t.Fatalf("failed Replace mutated the set: len = %d", s.Len())
	}
}

func TestReplaceFailureLeavesSetIntact(t *testing.T) {
	s := New()
	if _, err := s.Replace([]Line{validLine("keep", 10)}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	before := s.Snapshot()

	if _, err := s.Replace([]Line{validLine("a", 10), {Name: "bad"}}); err == nil {
		t.Fatal("Replace() with invalid line = nil; want error")
	}

	after := s.Snapshot()
	if after.Revision != before.Revision || len(after.Lines) != 1 || after.Lines[0].Name != "keep" {
		t.Fatalf("failed Replace changed snapshot: %+v -> %+v", before, after)
	}
}

func TestAddUpdatesInPlace(t *testing.T) {
	s := New()
	if _, err := s.Add(validLine("a", 10)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := s.Add(validLine("b", 20)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	updated := validLine("a", 15)
	m, err := s.Add(updated)
	if err != nil {
		t.Fatalf("Add() update error = %v", err)
	}
	if m.PreviousCount != 2 || m.CurrentCount != 2 {
		t.Fatalf("update mutation = %+v; want unchanged count 2", m)
	}

	snap := s.Snapshot()
	if snap.Lines[0].Name != "a" || snap.Lines[0].Price != 15 {
		t.Fatalf("updated line = %+v; want a at 15 keeping slot 0", snap.Lines[0])
	}
}

func TestRemoveReindexes(t *testing.T) {
	s := New()
	for _, l := range []Line{validLine("a", 10), validLine("b", 20), validLine("c", 30)} {
		if _, err := s.Add(l); err != nil {
			t.Fatalf("Add(%s) error = %v", l.Name, err)
		}
	}

	m := s.Remove("b")
	if m.CurrentCount != 2 {
		t.Fatalf("Remove mutation = %+v; want count 2", m)
	}

	// Later mutation of a re-indexed name must hit the right slot.
	if _, err := s.Add(validLine("c", 35)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Lines[1].Name != "c" || snap.Lines[1].Price != 35 {
		t.Fatalf("after remove+update, slot 1 = %+v; want c at 35", snap.Lines[1])
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	s := New()
	m := s.Remove("ghost")
	if m.PreviousCount != 0 || m.CurrentCount != 0 {
		t.Fatalf("Remove(absent) mutation = %+v; want 0->0", m)
	}
}

func TestSnapshotIsImmutableAcrossMutations(t *testing.T) {
	s := New()
	if _, err := s.Replace([]Line{validLine("a", 10)}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	snap := s.Snapshot()

	if _, err := s.Add(validLine("b", 20)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Remove("a")

	if len(snap.Lines) != 1 || snap.Lines[0].Name != "a" {
		t.Fatalf("old snapshot changed under mutation: %+v", snap.Lines)
	}
}

func TestSortedByPrice(t *testing.T) {
	s := New()
	if _, err := s.Replace([]Line{validLine("hi", 30), validLine("lo", 10), validLine("mid", 20)}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	sorted := s.Snapshot().SortedByPrice()
	want := []string{"lo", "mid", "hi"}
	for i, name := range want {
		if sorted[i].Name != name {
			t.Fatalf("SortedByPrice()[%d] = %q; want %q", i, sorted[i].Name, name)
		}
	}
}

func TestClear(t *testing.T) {
	s := New()
	if _, err := s.Replace([]Line{validLine("a", 10)}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	m := s.Clear()
	if m.Kind != UpdateClear || m.CurrentCount != 0 || s.Len() != 0 {
		t.Fatalf("Clear() mutation = %+v, len = %d; want empty", m, s.Len())
	}
}
