// Package lineset holds the mutable collection of reference lines and hands
// immutable snapshots to the render path.
package lineset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chartglass/overlay/internal/winsys"
)

// Style selects the stroke pattern of a line.
type Style string

const (
	StyleSolid   Style = "solid"
	StyleDashed  Style = "dashed"
	StyleDotted  Style = "dotted"
	StyleDashDot Style = "dashdot"
)

// Anchor selects where a price label attaches on the line.
type Anchor string

const (
	AnchorLeft  Anchor = "left"
	AnchorRight Anchor = "right"
)

// UpdateKind describes a mutation applied to the set.
type UpdateKind string

const (
	UpdateBatch  UpdateKind = "batch"
	UpdateAdd    UpdateKind = "add"
	UpdateRemove UpdateKind = "remove"
	UpdateClear  UpdateKind = "clear"
)

// Line describes one reference line. The render path never mutates lines;
// mutations go through the Set and surface in the next snapshot.
type Line struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Color     string  `json:"color"`
	Style     Style   `json:"style"`
	Width     float64 `json:"width"`
	Opacity   float64 `json:"opacity"`
	Key       bool    `json:"key"`
	ShowLabel bool    `json:"show_label"`
	Anchor    Anchor  `json:"anchor,omitempty"`
	Hidden    bool    `json:"hidden,omitempty"`
}

// Validate normalizes optional fields and rejects malformed descriptors.
func (l *Line) Validate() error {
	if l.Name == "" {
		return winsys.NewError(winsys.CodeValidation, "line name is required", nil)
	}
	if l.Price <= 0 {
		return winsys.NewError(winsys.CodeValidation, fmt.Sprintf("line %q price must be positive", l.Name), nil)
	}
	if l.Width < 1 || l.Width > 10 {
		return winsys.NewError(winsys.CodeValidation, fmt.Sprintf("line %q width must be within 1-10", l.Name), nil)
	}
	if l.Opacity < 0 || l.Opacity > 1 {
		return winsys.NewError(winsys.CodeValidation, fmt.Sprintf("line %q opacity must be within 0-1", l.Name), nil)
	}
	switch l.Style {
	case StyleSolid, StyleDashed, StyleDotted, StyleDashDot:
	case "":
		l.Style = StyleSolid
	default:
		return winsys.NewError(winsys.CodeValidation, fmt.Sprintf("line %q has unknown style %q", l.Name, l.Style), nil)
	}
	switch l.Anchor {
	case AnchorLeft, AnchorRight:
	case "":
		l.Anchor = AnchorRight
	default:
		return winsys.NewError(winsys.CodeValidation, fmt.Sprintf("line %q has unknown anchor %q", l.Name, l.Anchor), nil)
	}
	return nil
}

// Snapshot is an immutable view of the set taken at the start of a frame.
// Every line in one snapshot carries the same batch revision, so a committed
// frame can never mix lines from two different batch updates.
type Snapshot struct {
	Lines    []Line
	Revision uint64
}

// Mutation reports what a Set operation changed, for event publication.
type Mutation struct {
	Kind          UpdateKind
	PreviousCount int
	CurrentCount  int
	Revision      uint64
}

// Set is the thread-exposed line collection. Mutations hold the lock only
// long enough to swap the backing slice; readers copy nothing.
type Set struct {
	mu       sync.Mutex
	lines    []Line
	index    map[string]int
	revision uint64
}

// New returns an empty set.
func New() *Set {
	return &Set{index: make(map[string]int)}
}

// Replace installs a whole new batch, discarding the previous lines.
func (s *Set) Replace(lines []Line) (Mutation, error) {
	normalized := make([]Line, len(lines))
	index := make(map[string]int, len(lines))
	for i := range lines {
		l := lines[i]
		if err := l.Validate(); err != nil {
			return Mutation{}, err
		}
		if _, dup := index[l.Name]; dup {
			return Mutation{}, winsys.NewError(winsys.CodeValidation, fmt.Sprintf("duplicate line name %q", l.Name), nil)
		}
		index[l.Name] = i
		normalized[i] = l
	}

	s.mu.Lock()
	prev := len(s.lines)
	s.lines = normalized
	s.index = index
	s.revision++
	m := Mutation{Kind: UpdateBatch, PreviousCount: prev, CurrentCount: len(normalized), Revision: s.revision}
	s.mu.Unlock()
	return m, nil
}

// Add inserts one line; an existing line with the same name is updated in
// place, keeping its insertion order.
func (s *Set) Add(line Line) (Mutation, error) {
	if err := line.Validate(); err != nil {
		return Mutation{}, err
	}

	s.mu.Lock()
	prev := len(s.lines)
	next := make([]Line, len(s.lines))
	copy(next, s.lines)
	if i, ok := s.index[line.Name]; ok {
		next[i] = line
	} else {
		s.index[line.Name] = len(next)
		next = append(next, line)
	}
	s.lines = next
	s.revision++
	m := Mutation{Kind: UpdateAdd, PreviousCount: prev, CurrentCount: len(next), Revision: s.revision}
	s.mu.Unlock()
	return m, nil
}

// Remove deletes a line by name. Removing an absent name is not an error;
// the mutation reports an unchanged count.
func (s *Set) Remove(name string) Mutation {
	s.mu.Lock()
	prev := len(s.lines)
	if i, ok := s.index[name]; ok {
		next := make([]Line, 0, len(s.lines)-1)
		next = append(next, s.lines[:i]...)
		next = append(next, s.lines[i+1:]...)
		s.lines = next
		delete(s.index, name)
		for n, j := range s.index {
			if j > i {
				s.index[n] = j - 1
			}
		}
	}
	s.revision++
	m := Mutation{Kind: UpdateRemove, PreviousCount: prev, CurrentCount: len(s.lines), Revision: s.revision}
	s.mu.Unlock()
	return m
}

// Clear empties the set.
func (s *Set) Clear() Mutation {
	s.mu.Lock()
	prev := len(s.lines)
	s.lines = nil
	s.index = make(map[string]int)
	s.revision++
	m := Mutation{Kind: UpdateClear, PreviousCount: prev, CurrentCount: 0, Revision: s.revision}
	s.mu.Unlock()
	return m
}

// Len returns the current number of lines.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Snapshot returns the current lines and revision. The returned slice is
// never mutated afterwards; callers may iterate without copying.
func (s *Set) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Lines: s.lines, Revision: s.revision}
}

// SortedByPrice returns the snapshot lines ordered by ascending price,
// preserving insertion order between equal prices.
func (sn Snapshot) SortedByPrice() []Line {
	out := make([]Line, len(sn.Lines))
	copy(out, sn.Lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
