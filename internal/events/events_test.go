package events

import "testing"

func TestBusOrderAndUnsubscribe(t *testing.T) {
	b := NewBus()
	var got []string

	b.Subscribe(func(e Event) { got = append(got, "a:"+e.Name) })
	off := b.Subscribe(func(e Event) { got = append(got, "b:"+e.Name) })

	b.Emit(LengthChanged, 10)
	off()
	off()
	b.Emit(PlayStateChanged, true)

	want := []string{"a:" + LengthChanged, "b:" + LengthChanged, "a:" + PlayStateChanged}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestListenerMayEmit(t *testing.T) {
	b := NewBus()
	n := 0
	b.Subscribe(func(e Event) {
		n++
		if e.Name == CanUndoChanged {
			b.Emit(CanRedoChanged, false)
		}
	})
	b.Emit(CanUndoChanged, true)
	if n != 2 {
		t.Errorf("listener called %d times, want 2", n)
	}
}
