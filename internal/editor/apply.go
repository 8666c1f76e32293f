package editor

import (
	"errors"
	"fmt"

	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/compositor"
	"github.com/ivlev/vividcut/internal/effects"
)

var (
	ErrInvalidTrim    = errors.New("trim outside the timeline")
	ErrInvalidZoom    = errors.New("invalid zoom parameters")
	ErrMissingPayload = errors.New("command is missing its payload")
	ErrUnknownCommand = errors.New("unknown command")
)

// state applies commands to the track, the effect timeline and the
// compositor trims. Track mutations return fresh clip ranges, which are
// forwarded to the compositor here.
type state struct {
	track    *cliptrack.Track
	timeline *effects.Timeline
	comp     *compositor.Compositor
}

func (s *state) Apply(cmd Command) (Command, error) {
	switch cmd.Kind {
	case KindTrimLeft:
		start, end := s.comp.StartFrame(), s.comp.EndFrame()
		if cmd.Frame <= 0 || start+cmd.Frame >= end {
			return cmd, fmt.Errorf("%w: left trim %d with start %d and end %d", ErrInvalidTrim, cmd.Frame, start, end)
		}
		s.comp.PushTrimLeft(cmd.Frame)
		return cmd, nil

	case KindTrimRight:
		start := s.comp.StartFrame()
		if cmd.Frame <= start || cmd.Frame > s.comp.PhysicalLength() {
			return cmd, fmt.Errorf("%w: right trim %d with start %d", ErrInvalidTrim, cmd.Frame, start)
		}
		s.comp.PushTrimRight(cmd.Frame)
		return cmd, nil

	case KindCut:
		var ranges []cliptrack.Range
		var err error
		if cmd.Cut == nil {
			var cp cliptrack.CutPoint
			cp, ranges, err = s.track.Cut()
			if err == nil {
				cmd.Cut = &cp
			}
		} else {
			ranges, err = s.track.Split(cmd.Cut.Index, cmd.Cut.X)
		}
		if err != nil {
			return cmd, err
		}
		s.comp.SetClipRanges(ranges)
		return cmd, nil

	case KindDeleteClip:
		seg, ranges, err := s.track.Delete(cmd.Index)
		if err != nil {
			return cmd, err
		}
		cmd.Segment = &seg
		s.comp.SetClipRanges(ranges)
		return cmd, nil

	case KindInsertGap:
		p, ranges, err := s.track.InsertGap(cmd.Frame, cmd.Count)
		if err != nil {
			return cmd, err
		}
		cmd.Gap = &p
		s.comp.SetClipRanges(ranges)
		return cmd, nil

	case KindCloseGap:
		c, ranges, err := s.track.CloseGap(cmd.Frame, cmd.Count)
		if err != nil {
			return cmd, err
		}
		cmd.Closure = &c
		s.comp.SetClipRanges(ranges)
		return cmd, nil

	case KindAddZoom, KindRemoveZoom, KindUpdateZoom:
		if cmd.Zoom == nil {
			return cmd, ErrMissingPayload
		}
		if cmd.Zoom.To != nil {
			if err := validZoom(cmd.Zoom.To.Params); err != nil {
				return cmd, err
			}
		}
		ch, err := applyChange(s.timeline.Zooms, cmd.Kind, *cmd.Zoom)
		if err != nil {
			return cmd, err
		}
		cmd.Zoom = &ch
		return cmd, nil

	case KindAddCard, KindRemoveCard, KindUpdateCard:
		if cmd.Card == nil {
			return cmd, ErrMissingPayload
		}
		ch, err := applyChange(s.timeline.Cards, cmd.Kind, *cmd.Card)
		if err != nil {
			return cmd, err
		}
		cmd.Card = &ch
		return cmd, nil
	}
	return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func (s *state) Revert(cmd Command) error {
	switch cmd.Kind {
	case KindTrimLeft:
		_, err := s.comp.PopTrimLeft()
		return err

	case KindTrimRight:
		_, err := s.comp.PopTrimRight()
		return err

	case KindCut:
		if cmd.Cut == nil {
			return ErrMissingPayload
		}
		return s.forward(s.track.Merge(cmd.Cut.Index))

	case KindDeleteClip:
		if cmd.Segment == nil {
			return ErrMissingPayload
		}
		return s.forward(s.track.InsertAt(cmd.Index, *cmd.Segment))

	case KindInsertGap:
		if cmd.Gap == nil {
			return ErrMissingPayload
		}
		return s.forward(s.track.RemoveGap(*cmd.Gap))

	case KindCloseGap:
		if cmd.Closure == nil {
			return ErrMissingPayload
		}
		return s.forward(s.track.ReopenGap(*cmd.Closure))

	case KindAddZoom, KindRemoveZoom, KindUpdateZoom:
		if cmd.Zoom == nil {
			return ErrMissingPayload
		}
		return revertChange(s.timeline.Zooms, cmd.Kind, *cmd.Zoom)

	case KindAddCard, KindRemoveCard, KindUpdateCard:
		if cmd.Card == nil {
			return ErrMissingPayload
		}
		return revertChange(s.timeline.Cards, cmd.Kind, *cmd.Card)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}

func (s *state) forward(ranges []cliptrack.Range, err error) error {
	if err != nil {
		return err
	}
	s.comp.SetClipRanges(ranges)
	return nil
}

func validZoom(p effects.ZoomParams) error {
	if p.Scale <= 0 || p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 || p.EaseInFrames < 0 || p.EaseOutFrames < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidZoom, p)
	}
	return nil
}

// applyChange performs an interval add, remove or update and returns the
// change with the removed and displaced intervals captured.
func applyChange[P any](set *effects.Set[P], kind Kind, ch Change[P]) (Change[P], error) {
	switch kind {
	case KindAddZoom, KindAddCard:
		if ch.To == nil {
			return ch, ErrMissingPayload
		}
		displaced, err := set.Add(ch.To.Start, ch.To.End, ch.To.Params)
		if err != nil {
			return ch, err
		}
		ch.Displaced = displaced
		return ch, nil

	case KindRemoveZoom, KindRemoveCard:
		if ch.From == nil {
			return ch, ErrMissingPayload
		}
		iv, err := set.Remove(ch.From.Start, ch.From.End)
		if err != nil {
			return ch, err
		}
		ch.From = &iv
		return ch, nil

	default:
		if ch.From == nil || ch.To == nil {
			return ch, ErrMissingPayload
		}
		old, displaced, err := set.Update(ch.From.Start, ch.From.End, ch.To.Start, ch.To.End, ch.To.Params)
		if err != nil {
			return ch, err
		}
		ch.From = &old
		ch.Displaced = displaced
		return ch, nil
	}
}

func revertChange[P any](set *effects.Set[P], kind Kind, ch Change[P]) error {
	switch kind {
	case KindAddZoom, KindAddCard:
		if _, err := set.Delete(ch.To.Start, ch.To.End); err != nil {
			return err
		}
		set.Restore(ch.Displaced...)

	case KindRemoveZoom, KindRemoveCard:
		iv, ok := set.TakeRemoved(ch.From.Start, ch.From.End)
		if !ok {
			iv = *ch.From
		}
		set.Restore(iv)

	default:
		if _, err := set.Delete(ch.To.Start, ch.To.End); err != nil {
			return err
		}
		set.Restore(ch.Displaced...)
		set.Restore(*ch.From)
	}
	return nil
}
