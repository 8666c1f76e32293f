package events

import (
	"image"
	"sync"
)

// Event names. Data carries a single value per event.
const (
	FrameReady          = "frame:ready"     // FramePayload
	PlayStateChanged    = "playback:state"  // bool
	CurrentFrameChanged = "frame:current"   // int, relative to the start frame
	ExportProgress      = "export:progress" // float64 in [0, 100]
	LengthChanged       = "timeline:length" // int
	ZoomEffectsChanged  = "effects:zoom"    // nil
	TextCardsChanged    = "effects:card"    // nil
	CanUndoChanged      = "history:undo"    // bool
	CanRedoChanged      = "history:redo"    // bool
)

type Event struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

// FramePayload accompanies FrameReady. The image is only valid during the
// listener call; copy it to keep it.
type FramePayload struct {
	Frame int         `json:"frame"`
	Image *image.RGBA `json:"-"`
}

// Listener receives events synchronously on the emitting goroutine.
type Listener func(Event)

// Bus fans events out to listeners in subscription order.
type Bus struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	order     []int
	next      int
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) Emit(name string, data any) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	ev := Event{Name: name, Data: data}
	for _, fn := range fns {
		fn(ev)
	}
}
