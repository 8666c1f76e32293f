package cliptrack

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoCutPoint      = errors.New("no pending cut point")
	ErrOutOfRange      = errors.New("segment index out of range")
	ErrBadCutPosition  = errors.New("cut position is outside the segment")
	ErrGapSegment      = errors.New("operation not allowed on a gap")
	ErrSoleSegment     = errors.New("cannot delete the only segment")
	ErrInteriorDelete  = errors.New("only the first or last segment can be deleted")
	ErrInvalidGap      = errors.New("gap length must be positive")
	ErrNoSegment       = errors.New("no segment after the gap")
	ErrFirstSegment    = errors.New("gap cannot be closed before the first segment")
	ErrNoGap           = errors.New("no gap before the segment")
	ErrNotMergeable    = errors.New("segments cannot be merged")
)

// DefaultPixelsPerFrame is the pixel width of one frame on the track.
const DefaultPixelsPerFrame = 10.0

// Segment is one clip on the track. X and Width are pixel proxies of frame
// positions; Length is the authoritative frame count. A Gap segment is a
// spacer without source content, Joined marks a spacer that was opened
// inside a clip and splits it in two.
type Segment struct {
	X           float64 `yaml:"x" json:"x"`
	Width       float64 `yaml:"width" json:"width"`
	Length      int     `yaml:"length" json:"length"`
	SourceStart int     `yaml:"source_start" json:"source_start"`
	Gap         bool    `yaml:"gap,omitempty" json:"gap,omitempty"`
	Joined      bool    `yaml:"joined,omitempty" json:"joined,omitempty"`
}

// Range is the frame projection of a content segment.
type Range struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// CutPoint is a pending cut position inside a segment.
type CutPoint struct {
	Index int     `yaml:"index" json:"index"`
	X     float64 `yaml:"x" json:"x"`
}

// Track owns the ordered clip segments. It is not safe for concurrent use.
type Track struct {
	ppf      float64
	segments []Segment
	pending  *CutPoint
}

func New(pixelsPerFrame float64) *Track {
	if pixelsPerFrame <= 0 {
		pixelsPerFrame = DefaultPixelsPerFrame
	}
	return &Track{ppf: pixelsPerFrame}
}

func (t *Track) PixelsPerFrame() float64 { return t.ppf }

// Reset replaces the track with one segment spanning length frames.
func (t *Track) Reset(length int) []Range {
	t.segments = []Segment{{Width: float64(length) * t.ppf, Length: length}}
	t.pending = nil
	return t.Ranges()
}

// Load replaces the segments wholesale, e.g. from a project file.
func (t *Track) Load(segments []Segment) []Range {
	t.segments = append([]Segment(nil), segments...)
	t.pending = nil
	t.layout()
	return t.Ranges()
}

func (t *Track) Len() int { return len(t.segments) }

func (t *Track) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Ranges returns frame ranges of content segments in track order.
func (t *Track) Ranges() []Range {
	out := make([]Range, 0, len(t.segments))
	for _, s := range t.segments {
		if s.Gap {
			continue
		}
		out = append(out, Range{Start: t.frameAt(s.X), End: t.frameAt(s.X + s.Width)})
	}
	return out
}

// TotalLength is the sum of all segment lengths, spacers included.
func (t *Track) TotalLength() int {
	n := 0
	for _, s := range t.segments {
		n += s.Length
	}
	return n
}

func (t *Track) RecordCutPoint(index int, x float64) {
	t.pending = &CutPoint{Index: index, X: x}
}

func (t *Track) ResetCutPoint() { t.pending = nil }

func (t *Track) PendingCut() (CutPoint, bool) {
	if t.pending == nil {
		return CutPoint{}, false
	}
	return *t.pending, true
}

// Cut splits at the pending cut point. The point is consumed only when the
// split succeeds.
func (t *Track) Cut() (CutPoint, []Range, error) {
	if t.pending == nil {
		return CutPoint{}, nil, ErrNoCutPoint
	}
	cp := *t.pending
	ranges, err := t.Split(cp.Index, cp.X)
	if err != nil {
		return cp, nil, err
	}
	t.pending = nil
	return cp, ranges, nil
}

// Split divides segment index at local pixel offset x. The first part keeps
// [0, x), the second is inserted right after it.
func (t *Track) Split(index int, x float64) ([]Range, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	seg := t.segments[index]
	if seg.Gap {
		return nil, ErrGapSegment
	}
	if x <= 0 || x >= seg.Width {
		return nil, fmt.Errorf("%w: x=%.1f width=%.1f", ErrBadCutPosition, x, seg.Width)
	}

	first := seg
	first.Width = x
	first.Length = t.frameAt(x)

	second := seg
	second.Width = seg.Width - x
	second.Length = seg.Length - first.Length
	second.SourceStart = seg.SourceStart + first.Length

	t.segments[index] = first
	t.insert(index+1, second)
	t.layout()
	return t.Ranges(), nil
}

// Merge joins segment index with the one after it. It is the inverse of Split.
func (t *Track) Merge(index int) ([]Range, error) {
	if index < 0 || index+1 >= len(t.segments) {
		return nil, ErrOutOfRange
	}
	a, b := t.segments[index], t.segments[index+1]
	if a.Gap || b.Gap {
		return nil, ErrNotMergeable
	}
	a.Width += b.Width
	a.Length += b.Length
	t.segments[index] = a
	t.remove(index + 1)
	t.layout()
	return t.Ranges(), nil
}

// Delete removes the first or last segment. Interior segments and the only
// remaining segment are rejected.
func (t *Track) Delete(index int) (Segment, []Range, error) {
	if err := t.checkIndex(index); err != nil {
		return Segment{}, nil, err
	}
	if len(t.segments) == 1 {
		return Segment{}, nil, ErrSoleSegment
	}
	if index != 0 && index != len(t.segments)-1 {
		return Segment{}, nil, fmt.Errorf("%w: index %d", ErrInteriorDelete, index)
	}
	seg := t.segments[index]
	t.remove(index)
	t.pending = nil
	t.layout()
	return seg, t.Ranges(), nil
}

// InsertAt puts seg back at index. It is the inverse of Delete.
func (t *Track) InsertAt(index int, seg Segment) ([]Range, error) {
	if index < 0 || index > len(t.segments) {
		return nil, ErrOutOfRange
	}
	t.insert(index, seg)
	t.layout()
	return t.Ranges(), nil
}

func (t *Track) checkIndex(index int) error {
	if index < 0 || index >= len(t.segments) {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(t.segments))
	}
	return nil
}

func (t *Track) insert(index int, seg Segment) {
	t.segments = append(t.segments, Segment{})
	copy(t.segments[index+1:], t.segments[index:])
	t.segments[index] = seg
}

func (t *Track) remove(index int) {
	t.segments = append(t.segments[:index], t.segments[index+1:]...)
}

// layout recomputes X left to right from widths.
func (t *Track) layout() {
	x := 0.0
	for i := range t.segments {
		t.segments[i].X = x
		x += t.segments[i].Width
	}
}

func (t *Track) frameAt(px float64) int {
	return int(math.Floor(px/t.ppf + 1e-9))
}

// starts returns the first frame of every segment.
func (t *Track) starts() []int {
	out := make([]int, len(t.segments))
	f := 0
	for i, s := range t.segments {
		out[i] = f
		f += s.Length
	}
	return out
}
