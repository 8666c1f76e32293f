package effects

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotFound     = errors.New("interval not found")
	ErrInvalidRange = errors.New("invalid interval range")
)

// Interval is a closed frame range [Start, End] carrying effect parameters.
type Interval[P any] struct {
	Start  int `yaml:"start_frame" json:"start_frame"`
	End    int `yaml:"end_frame" json:"end_frame"`
	Params P   `yaml:"params" json:"params"`
}

func (iv Interval[P]) overlaps(start, end int) bool {
	return iv.Start <= end && iv.End >= start
}

// Active is the result of a point query: the matching interval plus the
// position of the queried frame inside it.
type Active[P any] struct {
	Interval[P]
	Progress      float64 `json:"progress"`
	FramePosition int     `json:"frame_position"`
	TotalFrames   int     `json:"total_frames"`
}

type rangeKey struct{ start, end int }

// Set is a sorted, non-overlapping collection of intervals. Adding an
// interval replaces every stored interval it overlaps.
type Set[P any] struct {
	items   []Interval[P]
	removed map[rangeKey]Interval[P]
}

func NewSet[P any]() *Set[P] {
	return &Set[P]{removed: make(map[rangeKey]Interval[P])}
}

// Add inserts [start, end] and returns the intervals it displaced.
func (s *Set[P]) Add(start, end int, params P) ([]Interval[P], error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, start, end)
	}
	var displaced []Interval[P]
	var kept []Interval[P]
	for _, iv := range s.items {
		if iv.overlaps(start, end) {
			displaced = append(displaced, iv)
			continue
		}
		kept = append(kept, iv)
	}
	s.items = append(kept, Interval[P]{Start: start, End: end, Params: params})
	s.order()
	return displaced, nil
}

// Remove deletes the interval matching (start, end) exactly and parks it in
// the removed buffer.
func (s *Set[P]) Remove(start, end int) (Interval[P], error) {
	iv, err := s.Delete(start, end)
	if err != nil {
		return iv, err
	}
	s.removed[rangeKey{start, end}] = iv
	return iv, nil
}

// Delete removes the exact match without keeping it around.
func (s *Set[P]) Delete(start, end int) (Interval[P], error) {
	for i, iv := range s.items {
		if iv.Start == start && iv.End == end {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return iv, nil
		}
	}
	return Interval[P]{}, fmt.Errorf("%w: [%d, %d]", ErrNotFound, start, end)
}

// TakeRemoved pops a previously removed interval.
func (s *Set[P]) TakeRemoved(start, end int) (Interval[P], bool) {
	k := rangeKey{start, end}
	iv, ok := s.removed[k]
	if ok {
		delete(s.removed, k)
	}
	return iv, ok
}

// Update replaces the exact match (oldStart, oldEnd) with a new interval.
// It returns the replaced interval and whatever else the new one displaced.
func (s *Set[P]) Update(oldStart, oldEnd, newStart, newEnd int, params P) (Interval[P], []Interval[P], error) {
	if newStart < 0 || newEnd < newStart {
		return Interval[P]{}, nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, newStart, newEnd)
	}
	old, err := s.Delete(oldStart, oldEnd)
	if err != nil {
		return old, nil, err
	}
	displaced, _ := s.Add(newStart, newEnd, params)
	return old, displaced, nil
}

// Restore puts intervals back without overlap checks. Callers use it to
// revert an Add or Update, so the restored entries never collide.
func (s *Set[P]) Restore(items ...Interval[P]) {
	s.items = append(s.items, items...)
	s.order()
}

// Find returns the exact match for (start, end).
func (s *Set[P]) Find(start, end int) (Interval[P], bool) {
	for _, iv := range s.items {
		if iv.Start == start && iv.End == end {
			return iv, true
		}
	}
	return Interval[P]{}, false
}

// Active returns the first interval with start <= frame <= end.
func (s *Set[P]) Active(frame int) (Active[P], bool) {
	for _, iv := range s.items {
		if frame < iv.Start || frame > iv.End {
			continue
		}
		a := Active[P]{
			Interval:      iv,
			FramePosition: frame - iv.Start,
			TotalFrames:   iv.End - iv.Start,
		}
		if a.TotalFrames > 0 {
			a.Progress = float64(a.FramePosition) / float64(a.TotalFrames)
		}
		return a, true
	}
	return Active[P]{}, false
}

// MaxEnd is the furthest end frame in the set.
func (s *Set[P]) MaxEnd() (int, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	last := s.items[0].End
	for _, iv := range s.items[1:] {
		if iv.End > last {
			last = iv.End
		}
	}
	return last, true
}

func (s *Set[P]) Len() int { return len(s.items) }

func (s *Set[P]) All() []Interval[P] {
	return append([]Interval[P](nil), s.items...)
}

// Replace loads a full set, dropping the removed buffer.
func (s *Set[P]) Replace(items []Interval[P]) {
	s.items = append([]Interval[P](nil), items...)
	s.removed = make(map[rangeKey]Interval[P])
	s.order()
}

func (s *Set[P]) Clear() { s.Replace(nil) }

func (s *Set[P]) order() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Start < s.items[j].Start
	})
}
