package editor

import (
	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/events"
	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/source"
)

// Snapshot is the complete edit state of a loaded video, history included.
type Snapshot struct {
	Segments  []cliptrack.Segment                    `yaml:"segments" json:"segments"`
	TrimLeft  []int                                  `yaml:"trim_left,omitempty" json:"trim_left,omitempty"`
	TrimRight []int                                  `yaml:"trim_right,omitempty" json:"trim_right,omitempty"`
	Zooms     []effects.Interval[effects.ZoomParams] `yaml:"zooms,omitempty" json:"zooms,omitempty"`
	Cards     []effects.Interval[effects.CardParams] `yaml:"cards,omitempty" json:"cards,omitempty"`
	Done      []Command                              `yaml:"done,omitempty" json:"done,omitempty"`
	Undone    []Command                              `yaml:"undone,omitempty" json:"undone,omitempty"`
	Current   int                                    `yaml:"current" json:"current"`
}

func (e *Editor) Snapshot() Snapshot {
	current := e.driver.Current()

	e.mu.Lock()
	defer e.mu.Unlock()
	left, right := e.comp.Trims()
	done, undone := e.history.Entries()
	return Snapshot{
		Segments:  e.track.Segments(),
		TrimLeft:  left,
		TrimRight: right,
		Zooms:     e.timeline.Zooms.All(),
		Cards:     e.timeline.Cards.All(),
		Done:      done,
		Undone:    undone,
		Current:   current,
	}
}

// Restore replaces the edit state of the loaded video with snap and shows
// its playhead frame.
func (e *Editor) Restore(snap Snapshot) error {
	e.mu.Lock()
	if !e.comp.Loaded() {
		e.mu.Unlock()
		return source.ErrNotLoaded
	}
	if len(snap.Segments) > 0 {
		e.comp.SetClipRanges(e.track.Load(snap.Segments))
	}
	e.comp.SetTrims(snap.TrimLeft, snap.TrimRight)
	e.timeline.Zooms.Replace(snap.Zooms)
	e.timeline.Cards.Replace(snap.Cards)
	e.history.Restore(snap.Done, snap.Undone)
	start := e.comp.StartFrame()
	out := []emission{
		{events.LengthChanged, e.comp.TotalFrames()},
		{events.ZoomEffectsChanged, nil},
		{events.TextCardsChanged, nil},
		{events.CanUndoChanged, e.history.CanUndo()},
		{events.CanRedoChanged, e.history.CanRedo()},
	}
	e.mu.Unlock()

	e.emit(out)
	e.driver.JumpTo(start + snap.Current)
	return nil
}

// Metadata returns the recording metadata given at load time.
func (e *Editor) Metadata() *metadata.Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta
}
