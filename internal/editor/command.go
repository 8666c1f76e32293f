package editor

import (
	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/effects"
)

// Kind tags a Command with the operation it performs.
type Kind string

const (
	KindTrimLeft   Kind = "trim_left"
	KindTrimRight  Kind = "trim_right"
	KindCut        Kind = "cut"
	KindDeleteClip Kind = "delete_clip"
	KindInsertGap  Kind = "insert_gap"
	KindCloseGap   Kind = "close_gap"
	KindAddZoom    Kind = "add_zoom"
	KindRemoveZoom Kind = "remove_zoom"
	KindUpdateZoom Kind = "update_zoom"
	KindAddCard    Kind = "add_card"
	KindRemoveCard Kind = "remove_card"
	KindUpdateCard Kind = "update_card"
)

// Command is one undoable edit. Only the fields of its Kind are set. The
// captured fields (Segment, Gap, Closure, From, Displaced) are filled in when
// the command is first applied and drive its exact inverse.
type Command struct {
	Kind Kind `yaml:"kind" json:"kind"`

	// trims: the trim value; gaps: the anchor frame
	Frame int `yaml:"frame,omitempty" json:"frame,omitempty"`
	Count int `yaml:"count,omitempty" json:"count,omitempty"`
	Index int `yaml:"index,omitempty" json:"index,omitempty"`

	Cut     *cliptrack.CutPoint     `yaml:"cut,omitempty" json:"cut,omitempty"`
	Segment *cliptrack.Segment      `yaml:"segment,omitempty" json:"segment,omitempty"`
	Gap     *cliptrack.GapPlacement `yaml:"gap,omitempty" json:"gap,omitempty"`
	Closure *cliptrack.GapClosure   `yaml:"closure,omitempty" json:"closure,omitempty"`

	Zoom *Change[effects.ZoomParams] `yaml:"zoom,omitempty" json:"zoom,omitempty"`
	Card *Change[effects.CardParams] `yaml:"card,omitempty" json:"card,omitempty"`
}

// Change describes an interval edit. Add sets To, Remove sets From, Update
// sets both.
type Change[P any] struct {
	From      *effects.Interval[P]  `yaml:"from,omitempty" json:"from,omitempty"`
	To        *effects.Interval[P]  `yaml:"to,omitempty" json:"to,omitempty"`
	Displaced []effects.Interval[P] `yaml:"displaced,omitempty" json:"displaced,omitempty"`
}

func span[P any](start, end int, p P) *effects.Interval[P] {
	return &effects.Interval[P]{Start: start, End: end, Params: p}
}

func TrimLeft(frames int) Command { return Command{Kind: KindTrimLeft, Frame: frames} }
func TrimRight(end int) Command { return Command{Kind: KindTrimRight, Frame: end} }

// CutClip consumes the pending cut point when applied.
func CutClip() Command { return Command{Kind: KindCut} }

func DeleteClip(index int) Command { return Command{Kind: KindDeleteClip, Index: index} }

func InsertGap(frame, count int) Command {
	return Command{Kind: KindInsertGap, Frame: frame, Count: count}
}

func CloseGap(frame, count int) Command {
	return Command{Kind: KindCloseGap, Frame: frame, Count: count}
}

func AddZoom(start, end int, p effects.ZoomParams) Command {
	return Command{Kind: KindAddZoom, Zoom: &Change[effects.ZoomParams]{To: span(start, end, p)}}
}

func RemoveZoom(start, end int) Command {
	return Command{Kind: KindRemoveZoom, Zoom: &Change[effects.ZoomParams]{From: span(start, end, effects.ZoomParams{})}}
}

func UpdateZoom(oldStart, oldEnd, newStart, newEnd int, p effects.ZoomParams) Command {
	return Command{Kind: KindUpdateZoom, Zoom: &Change[effects.ZoomParams]{
		From: span(oldStart, oldEnd, effects.ZoomParams{}),
		To:   span(newStart, newEnd, p),
	}}
}

func AddCard(start, end int, p effects.CardParams) Command {
	return Command{Kind: KindAddCard, Card: &Change[effects.CardParams]{To: span(start, end, p)}}
}

func RemoveCard(start, end int) Command {
	return Command{Kind: KindRemoveCard, Card: &Change[effects.CardParams]{From: span(start, end, effects.CardParams{})}}
}

func UpdateCard(oldStart, oldEnd, newStart, newEnd int, p effects.CardParams) Command {
	return Command{Kind: KindUpdateCard, Card: &Change[effects.CardParams]{
		From: span(oldStart, oldEnd, effects.CardParams{}),
		To:   span(newStart, newEnd, p),
	}}
}
