package cliptrack

import (
	"errors"
	"math/rand"
	"testing"
)

func assertContiguous(t *testing.T, tr *Track) {
	t.Helper()
	segs := tr.Segments()
	if len(segs) == 0 {
		t.Fatal("track is empty")
	}
	if segs[0].X != 0 {
		t.Errorf("first segment x = %v, want 0", segs[0].X)
	}
	for i := 0; i+1 < len(segs); i++ {
		if segs[i].X+segs[i].Width != segs[i+1].X {
			t.Fatalf("segments %d/%d not contiguous: %v + %v != %v",
				i, i+1, segs[i].X, segs[i].Width, segs[i+1].X)
		}
	}
}

func TestCutRequiresPendingPoint(t *testing.T) {
	tr := New(10)
	tr.Reset(100)

	if _, _, err := tr.Cut(); !errors.Is(err, ErrNoCutPoint) {
		t.Fatalf("Cut() error = %v, want ErrNoCutPoint", err)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}

func TestCutUsesLatestPoint(t *testing.T) {
	tr := New(10)
	tr.Reset(100)

	tr.RecordCutPoint(0, 200)
	tr.RecordCutPoint(0, 400)
	cp, ranges, err := tr.Cut()
	if err != nil {
		t.Fatalf("Cut() error = %v", err)
	}
	if cp.X != 400 {
		t.Errorf("cut x = %v, want 400", cp.X)
	}
	want := []Range{{0, 40}, {40, 100}}
	if len(ranges) != len(want) {
		t.Fatalf("ranges = %v, want %v", ranges, want)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("ranges[%d] = %v, want %v", i, ranges[i], want[i])
		}
	}
	if _, ok := tr.PendingCut(); ok {
		t.Error("pending cut point should be consumed")
	}
	assertContiguous(t, tr)
}

func TestRejectedCutKeepsPendingPoint(t *testing.T) {
	tr := New(10)
	tr.Reset(10)
	before := tr.Segments()

	tr.RecordCutPoint(0, 150)
	if _, _, err := tr.Cut(); !errors.Is(err, ErrBadCutPosition) {
		t.Fatalf("Cut() error = %v, want ErrBadCutPosition", err)
	}
	if cp, ok := tr.PendingCut(); !ok || cp.X != 150 {
		t.Errorf("PendingCut() = %+v, %v, want the rejected point kept", cp, ok)
	}
	if got := tr.Segments(); len(got) != 1 || got[0] != before[0] {
		t.Errorf("segments after rejected cut = %+v", got)
	}

	tr.RecordCutPoint(0, 40)
	if _, _, err := tr.Cut(); err != nil {
		t.Fatalf("Cut() error = %v", err)
	}
	if _, ok := tr.PendingCut(); ok {
		t.Error("pending cut point should be consumed")
	}
}

func TestCutMergeRoundTrip(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	orig := tr.Segments()[0]

	if _, err := tr.Split(0, 333); err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	segs := tr.Segments()
	if segs[1].SourceStart != segs[0].Length {
		t.Errorf("second half source start = %d, want %d", segs[1].SourceStart, segs[0].Length)
	}
	if _, err := tr.Merge(0); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	got := tr.Segments()
	if len(got) != 1 || got[0] != orig {
		t.Errorf("after merge = %+v, want %+v", got, orig)
	}
}

func TestSplitRejectsEdges(t *testing.T) {
	tr := New(10)
	tr.Reset(10)
	for _, x := range []float64{0, -5, 100, 150} {
		if _, err := tr.Split(0, x); !errors.Is(err, ErrBadCutPosition) {
			t.Errorf("Split(0, %v) error = %v, want ErrBadCutPosition", x, err)
		}
	}
}

func TestDeletePolicy(t *testing.T) {
	tests := []struct {
		name    string
		cuts    []float64
		index   int
		wantErr error
		wantLen int
	}{
		{"sole segment", nil, 0, ErrSoleSegment, 1},
		{"first of three", []float64{300, 300}, 0, nil, 2},
		{"last of three", []float64{300, 300}, 2, nil, 2},
		{"interior", []float64{300, 300}, 1, ErrInteriorDelete, 3},
		{"out of range", []float64{300}, 5, ErrOutOfRange, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(10)
			tr.Reset(100)
			for i, x := range tt.cuts {
				if _, err := tr.Split(i, x); err != nil {
					t.Fatalf("Split() error = %v", err)
				}
			}
			_, _, err := tr.Delete(tt.index)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Delete() error = %v, want %v", err, tt.wantErr)
			}
			if tr.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", tr.Len(), tt.wantLen)
			}
			assertContiguous(t, tr)
		})
	}
}

func TestDeleteInsertAtRoundTrip(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	tr.Split(0, 250)
	before := tr.Segments()

	seg, _, err := tr.Delete(0)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if tr.Segments()[0].X != 0 {
		t.Error("remaining segment should move to x=0")
	}
	tr.InsertAt(0, seg)
	after := tr.Segments()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("segment %d = %+v, want %+v", i, after[i], before[i])
		}
	}
}

func TestInsertGapInsideClip(t *testing.T) {
	tr := New(10)
	tr.Reset(100)

	p, ranges, err := tr.InsertGap(30, 20)
	if err != nil {
		t.Fatalf("InsertGap() error = %v", err)
	}
	if !p.Split || p.Index != 1 {
		t.Errorf("placement = %+v, want split at index 1", p)
	}
	want := []Range{{0, 30}, {50, 120}}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("ranges[%d] = %v, want %v", i, ranges[i], want[i])
		}
	}
	if tr.TotalLength() != 120 {
		t.Errorf("TotalLength() = %d, want 120", tr.TotalLength())
	}
	assertContiguous(t, tr)
}

func TestInsertGapOnBoundary(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	tr.Split(0, 400)

	p, _, err := tr.InsertGap(40, 10)
	if err != nil {
		t.Fatalf("InsertGap() error = %v", err)
	}
	if p.Split || p.Index != 1 {
		t.Errorf("placement = %+v, want spacer before segment 1", p)
	}
	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
	assertContiguous(t, tr)
}

func TestGapRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame int
		count int
	}{
		{"inside clip", 30, 20},
		{"at start", 0, 5},
		{"at end", 100, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(10)
			tr.Reset(100)
			before := tr.Segments()

			if _, _, err := tr.InsertGap(tt.frame, tt.count); err != nil {
				t.Fatalf("InsertGap() error = %v", err)
			}
			if tt.frame == 100 {
				// Nothing follows a trailing spacer, so it can only be undone.
				if _, _, err := tr.CloseGap(tt.frame, tt.count); !errors.Is(err, ErrNoSegment) {
					t.Fatalf("CloseGap() error = %v, want ErrNoSegment", err)
				}
				return
			}
			if tt.frame == 0 {
				if _, _, err := tr.CloseGap(tt.frame, tt.count); err != nil {
					t.Fatalf("CloseGap() error = %v", err)
				}
			} else if _, _, err := tr.CloseGap(tt.frame, tt.count); err != nil {
				t.Fatalf("CloseGap() error = %v", err)
			}

			after := tr.Segments()
			if len(after) != len(before) {
				t.Fatalf("segment count = %d, want %d", len(after), len(before))
			}
			for i := range before {
				if after[i].X != before[i].X || after[i].Length != before[i].Length {
					t.Errorf("segment %d = %+v, want %+v", i, after[i], before[i])
				}
			}
		})
	}
}

func TestCloseGapRejections(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	tr.Split(0, 500)

	if _, _, err := tr.CloseGap(0, 0); !errors.Is(err, ErrInvalidGap) {
		t.Errorf("count 0: error = %v, want ErrInvalidGap", err)
	}
	if _, _, err := tr.CloseGap(95, 10); !errors.Is(err, ErrNoSegment) {
		t.Errorf("past end: error = %v, want ErrNoSegment", err)
	}
	if _, _, err := tr.CloseGap(40, 10); !errors.Is(err, ErrNoGap) {
		t.Errorf("no spacer: error = %v, want ErrNoGap", err)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestCloseGapPartialAndReopen(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	tr.InsertGap(50, 20)
	before := tr.Segments()

	c, _, err := tr.CloseGap(55, 15)
	if err != nil {
		t.Fatalf("CloseGap() error = %v", err)
	}
	if c.Removed {
		t.Error("spacer should only shrink")
	}
	if tr.TotalLength() != 105 {
		t.Errorf("TotalLength() = %d, want 105", tr.TotalLength())
	}
	if _, err := tr.ReopenGap(c); err != nil {
		t.Fatalf("ReopenGap() error = %v", err)
	}
	after := tr.Segments()
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("segment %d = %+v, want %+v", i, after[i], before[i])
		}
	}
}

func TestCloseGapMergedReopen(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	tr.InsertGap(30, 10)
	gapped := tr.Segments()

	c, _, err := tr.CloseGap(30, 10)
	if err != nil {
		t.Fatalf("CloseGap() error = %v", err)
	}
	if !c.Merged || tr.Len() != 1 {
		t.Fatalf("closure = %+v len=%d, want merged single segment", c, tr.Len())
	}
	tr.ReopenGap(c)
	after := tr.Segments()
	if len(after) != len(gapped) {
		t.Fatalf("segment count = %d, want %d", len(after), len(gapped))
	}
	for i := range gapped {
		if after[i] != gapped[i] {
			t.Errorf("segment %d = %+v, want %+v", i, after[i], gapped[i])
		}
	}
}

func TestRemoveGapUndoesInsert(t *testing.T) {
	tr := New(10)
	tr.Reset(100)
	before := tr.Segments()

	p, _, _ := tr.InsertGap(42, 8)
	if _, err := tr.RemoveGap(p); err != nil {
		t.Fatalf("RemoveGap() error = %v", err)
	}
	after := tr.Segments()
	if len(after) != 1 || after[0] != before[0] {
		t.Errorf("after = %+v, want %+v", after, before)
	}
}

func TestContiguityUnderRandomEdits(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tr := New(10)
	tr.Reset(300)

	for step := 0; step < 500; step++ {
		switch r.Intn(4) {
		case 0:
			i := r.Intn(tr.Len())
			seg := tr.Segments()[i]
			tr.RecordCutPoint(i, float64(r.Intn(int(seg.Width)+1)))
			tr.Cut()
		case 1:
			tr.Delete(r.Intn(tr.Len()))
		case 2:
			tr.InsertGap(r.Intn(tr.TotalLength()+1), 1+r.Intn(10))
		case 3:
			tr.CloseGap(r.Intn(tr.TotalLength()+1), 1+r.Intn(10))
		}
		assertContiguous(t, tr)
	}
}
