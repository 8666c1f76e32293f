package cliptrack

import "fmt"

// GapPlacement records where InsertGap put its spacer.
type GapPlacement struct {
	Index int  `yaml:"index" json:"index"`
	Count int  `yaml:"count" json:"count"`
	Split bool `yaml:"split,omitempty" json:"split,omitempty"`
	Grew  bool `yaml:"grew,omitempty" json:"grew,omitempty"`
}

// GapClosure records what CloseGap changed so ReopenGap can restore it.
type GapClosure struct {
	Index      int     `yaml:"index" json:"index"`
	Count      int     `yaml:"count" json:"count"`
	Spacer     Segment `yaml:"spacer" json:"spacer"`
	Removed    bool    `yaml:"removed,omitempty" json:"removed,omitempty"`
	Merged     bool    `yaml:"merged,omitempty" json:"merged,omitempty"`
	LeftLength int     `yaml:"left_length,omitempty" json:"left_length,omitempty"`
	LeftWidth  float64 `yaml:"left_width,omitempty" json:"left_width,omitempty"`
}

// InsertGap opens count empty frames at frame. A frame on a segment boundary
// puts the spacer before that segment; a frame inside a clip splits it and
// the spacer goes between the halves. Everything after shifts right.
func (t *Track) InsertGap(frame, count int) (GapPlacement, []Range, error) {
	if count <= 0 {
		return GapPlacement{}, nil, ErrInvalidGap
	}
	starts := t.starts()
	total := t.TotalLength()
	if frame < 0 || frame > total {
		return GapPlacement{}, nil, fmt.Errorf("%w: frame %d of %d", ErrOutOfRange, frame, total)
	}

	spacer := Segment{Width: float64(count) * t.ppf, Length: count, Gap: true}

	if frame == total {
		p := GapPlacement{Index: len(t.segments), Count: count}
		t.insert(p.Index, spacer)
		t.layout()
		return p, t.Ranges(), nil
	}

	i := 0
	for i+1 < len(starts) && starts[i+1] <= frame {
		i++
	}
	seg := t.segments[i]
	offset := frame - starts[i]

	switch {
	case offset == 0:
		p := GapPlacement{Index: i, Count: count}
		t.insert(i, spacer)
		t.layout()
		return p, t.Ranges(), nil
	case seg.Gap:
		t.segments[i].Length += count
		t.segments[i].Width += spacer.Width
		t.layout()
		return GapPlacement{Index: i, Count: count, Grew: true}, t.Ranges(), nil
	}

	head := seg
	head.Length = offset
	head.Width = float64(offset) * t.ppf
	tail := seg
	tail.Length = seg.Length - offset
	tail.Width = seg.Width - head.Width
	tail.SourceStart = seg.SourceStart + offset
	spacer.Joined = true

	t.segments[i] = head
	t.insert(i+1, spacer)
	t.insert(i+2, tail)
	t.layout()
	return GapPlacement{Index: i + 1, Count: count, Split: true}, t.Ranges(), nil
}

// RemoveGap is the exact inverse of InsertGap.
func (t *Track) RemoveGap(p GapPlacement) ([]Range, error) {
	if err := t.checkIndex(p.Index); err != nil {
		return nil, err
	}
	if !t.segments[p.Index].Gap {
		return nil, ErrNoGap
	}
	if p.Grew {
		t.segments[p.Index].Length -= p.Count
		t.segments[p.Index].Width -= float64(p.Count) * t.ppf
		t.layout()
		return t.Ranges(), nil
	}
	t.remove(p.Index)
	if p.Split {
		return t.Merge(p.Index - 1)
	}
	t.layout()
	return t.Ranges(), nil
}

// CloseGap removes count frames of spacer in front of the first segment
// starting at or after frame+count. A spacer that shrinks to nothing is
// dropped, and if it had split a clip the halves are joined again.
func (t *Track) CloseGap(frame, count int) (GapClosure, []Range, error) {
	if count <= 0 {
		return GapClosure{}, nil, ErrInvalidGap
	}
	starts := t.starts()
	j := -1
	for i, s := range starts {
		if s >= frame+count {
			j = i
			break
		}
	}
	switch {
	case j < 0:
		return GapClosure{}, nil, ErrNoSegment
	case j == 0:
		return GapClosure{}, nil, ErrFirstSegment
	case !t.segments[j-1].Gap:
		return GapClosure{}, nil, fmt.Errorf("%w: segment %d", ErrNoGap, j)
	}

	i := j - 1
	spacer := t.segments[i]
	if count > spacer.Length {
		count = spacer.Length
	}
	c := GapClosure{Index: i, Count: count, Spacer: spacer}

	if count < spacer.Length {
		t.segments[i].Length -= count
		t.segments[i].Width -= float64(count) * t.ppf
		t.layout()
		return c, t.Ranges(), nil
	}

	c.Removed = true
	t.remove(i)
	if spacer.Joined && i > 0 && i < len(t.segments) {
		left, right := t.segments[i-1], t.segments[i]
		if !left.Gap && !right.Gap && left.SourceStart+left.Length == right.SourceStart {
			c.Merged = true
			c.LeftLength = left.Length
			c.LeftWidth = left.Width
			t.layout()
			ranges, err := t.Merge(i - 1)
			return c, ranges, err
		}
	}
	t.layout()
	return c, t.Ranges(), nil
}

// ReopenGap is the exact inverse of CloseGap.
func (t *Track) ReopenGap(c GapClosure) ([]Range, error) {
	if !c.Removed {
		if err := t.checkIndex(c.Index); err != nil {
			return nil, err
		}
		t.segments[c.Index].Length += c.Count
		t.segments[c.Index].Width += float64(c.Count) * t.ppf
		t.layout()
		return t.Ranges(), nil
	}
	if c.Merged {
		if err := t.checkIndex(c.Index - 1); err != nil {
			return nil, err
		}
		whole := t.segments[c.Index-1]
		left := whole
		left.Length = c.LeftLength
		left.Width = c.LeftWidth
		right := whole
		right.Length = whole.Length - c.LeftLength
		right.Width = whole.Width - c.LeftWidth
		right.SourceStart = whole.SourceStart + c.LeftLength
		t.segments[c.Index-1] = left
		t.insert(c.Index, right)
	}
	if c.Index < 0 || c.Index > len(t.segments) {
		return nil, ErrOutOfRange
	}
	t.insert(c.Index, c.Spacer)
	t.layout()
	return t.Ranges(), nil
}
