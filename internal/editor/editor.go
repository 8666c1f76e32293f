package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/analyzer"
	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/compositor"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/events"
	"github.com/ivlev/vividcut/internal/export"
	"github.com/ivlev/vividcut/internal/history"
	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/playback"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/textcard"
	"github.com/ivlev/vividcut/internal/transform"
)

var ErrInvalidSource = errors.New("source has no playable frames")

// DefaultCutMargin is the margin DetectCuts uses for card placement.
const DefaultCutMargin = 5

const DefaultFocusMaxScale = 2.5

type Options struct {
	PixelsPerFrame float64
	HistoryLimit   int
	AutoZoom       bool
	CursorScale    float64
	CutMargin      int
	// FocusMaxScale caps the scale of zooms placed by FocusZoom.
	FocusMaxScale float64
	Source        source.Options
}

// Editor is the single owner of the timeline. Every exported method is safe
// for concurrent use. Playback enters through the render methods, so the
// driver lock is always taken before the editor lock, and events are
// emitted with no lock held.
type Editor struct {
	mu       sync.Mutex
	opts     Options
	base     zerolog.Logger
	log      zerolog.Logger
	bus      *events.Bus
	track    *cliptrack.Track
	timeline *effects.Timeline
	comp     *compositor.Compositor
	history  *history.Stack[Command]
	driver   *playback.Driver
	path     string
	meta     *metadata.Metadata
	detector analyzer.Detector
}

// New wires an editor around a transform pipeline and a text card renderer.
// A nil bus gets a private one.
func New(opts Options, pipeline *transform.Pipeline, cards *textcard.Renderer, bus *events.Bus, logger zerolog.Logger) *Editor {
	if bus == nil {
		bus = events.NewBus()
	}
	if opts.CutMargin <= 0 {
		opts.CutMargin = DefaultCutMargin
	}
	if opts.FocusMaxScale <= 0 {
		opts.FocusMaxScale = DefaultFocusMaxScale
	}
	timeline := effects.NewTimeline()
	e := &Editor{
		opts:     opts,
		base:     logger,
		log:      logger.With().Str("component", "editor").Logger(),
		bus:      bus,
		track:    cliptrack.New(opts.PixelsPerFrame),
		timeline: timeline,
		comp:     compositor.New(timeline, pipeline, cards, logger),
		detector: analyzer.NewContrastDetector(),
	}
	e.history = history.New[Command](&state{track: e.track, timeline: timeline, comp: e.comp}, opts.HistoryLimit)
	e.driver = playback.New(e, bus, logger)
	return e
}

type emission struct {
	name string
	data any
}

func (e *Editor) emit(out []emission) {
	for _, ev := range out {
		e.bus.Emit(ev.name, ev.data)
	}
}

// Subscribe registers a listener for editor events.
func (e *Editor) Subscribe(fn events.Listener) (unsubscribe func()) {
	return e.bus.Subscribe(fn)
}

func (e *Editor) Bus() *events.Bus { return e.bus }

// Load opens path and makes it the edited media. Nothing changes when the
// source cannot be opened.
func (e *Editor) Load(ctx context.Context, path string, meta *metadata.Metadata) error {
	src, err := source.Open(ctx, path, e.opts.Source)
	if err != nil {
		e.log.Error().Err(err).Str("path", path).Msg("load failed")
		return fmt.Errorf("load %s: %w", path, err)
	}
	return e.LoadSource(src, path, meta)
}

// LoadSource makes an already opened source the edited media. The timeline,
// effects and history start over; clicks in a recording's metadata become
// automatic zooms that are not part of the history.
func (e *Editor) LoadSource(src source.Source, path string, meta *metadata.Metadata) error {
	props := src.Properties()
	if props.FPS <= 0 || props.FrameCount <= 0 || props.Width <= 0 || props.Height <= 0 {
		src.Close()
		return fmt.Errorf("%w: %+v", ErrInvalidSource, props)
	}

	e.driver.Reset()

	e.mu.Lock()
	e.comp.SetSource(src)
	e.timeline.Clear()
	e.comp.SetClipRanges(e.track.Reset(props.FrameCount))
	e.history.Clear()
	e.path, e.meta = path, meta

	pipeline := e.comp.Pipeline()
	pipeline.Remove(transform.StageCursor)
	auto := 0
	if meta != nil {
		if moves := meta.Moves(); len(moves) > 0 {
			pipeline.Set(&transform.Cursor{Moves: moves, Scale: e.opts.CursorScale})
		}
		if e.opts.AutoZoom && meta.Recording {
			for _, iv := range NewDirector(props.FPS, props.FrameCount).Zooms(meta.Clicks()) {
				e.timeline.Zooms.Add(iv.Start, iv.End, iv.Params)
				auto++
			}
		}
	}
	out := []emission{
		{events.LengthChanged, e.comp.TotalFrames()},
		{events.ZoomEffectsChanged, nil},
		{events.TextCardsChanged, nil},
		{events.CanUndoChanged, false},
		{events.CanRedoChanged, false},
	}
	e.mu.Unlock()

	e.log.Info().
		Str("path", path).
		Float64("fps", props.FPS).
		Int("frames", props.FrameCount).
		Int("width", props.Width).
		Int("height", props.Height).
		Int("auto_zooms", auto).
		Msg("video loaded")

	e.emit(out)
	e.driver.JumpTo(0)
	return nil
}

// Close stops playback and releases the source.
func (e *Editor) Close() error {
	e.driver.Pause()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Close()
}

// Execute applies cmd, records it in the history and returns it with its
// captured state. A rejected command changes nothing.
func (e *Editor) Execute(cmd Command) (Command, error) {
	e.mu.Lock()
	if !e.comp.Loaded() {
		e.mu.Unlock()
		return cmd, source.ErrNotLoaded
	}
	before := e.comp.TotalFrames()
	applied, err := e.history.Do(cmd)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn().Err(err).Str("kind", string(cmd.Kind)).Msg("edit rejected")
		return cmd, err
	}
	out := e.changesLocked(applied, before)
	e.mu.Unlock()

	e.log.Debug().Str("kind", string(applied.Kind)).Msg("edit applied")
	e.emit(out)
	return applied, nil
}

func (e *Editor) do(cmd Command) bool {
	_, err := e.Execute(cmd)
	return err == nil
}

// Undo reverts the latest edit. It reports false when there is none.
func (e *Editor) Undo() bool {
	return e.step(e.history.Undo, "undo")
}

// Redo re-applies the latest undone edit.
func (e *Editor) Redo() bool {
	return e.step(e.history.Redo, "redo")
}

func (e *Editor) step(fn func() (Command, error), name string) bool {
	e.mu.Lock()
	before := e.comp.TotalFrames()
	cmd, err := fn()
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, history.ErrEmpty) {
			e.log.Debug().Msgf("nothing to %s", name)
		} else {
			e.log.Warn().Err(err).Msgf("%s failed", name)
		}
		return false
	}
	out := e.changesLocked(cmd, before)
	e.mu.Unlock()

	e.log.Debug().Str("kind", string(cmd.Kind)).Msg(name)
	e.emit(out)
	return true
}

func (e *Editor) changesLocked(cmd Command, lengthBefore int) []emission {
	var out []emission
	switch {
	case cmd.Zoom != nil:
		out = append(out, emission{events.ZoomEffectsChanged, nil})
	case cmd.Card != nil:
		out = append(out, emission{events.TextCardsChanged, nil})
	}
	if total := e.comp.TotalFrames(); total != lengthBefore {
		out = append(out, emission{events.LengthChanged, total})
	}
	return append(out,
		emission{events.CanUndoChanged, e.history.CanUndo()},
		emission{events.CanRedoChanged, e.history.CanRedo()},
	)
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// History returns the recorded commands, oldest first.
func (e *Editor) History() (done, undone []Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

// Timeline edits. Each reports whether the edit was applied.

func (e *Editor) TrimLeft(frames int) bool { return e.do(TrimLeft(frames)) }
func (e *Editor) TrimRight(end int) bool { return e.do(TrimRight(end)) }

// RecordCutPoint remembers where the next CutClip splits. Only the latest
// point is kept.
func (e *Editor) RecordCutPoint(index int, x float64) {
	e.mu.Lock()
	e.track.RecordCutPoint(index, x)
	e.mu.Unlock()
}

func (e *Editor) CutClip() bool { return e.do(CutClip()) }
func (e *Editor) DeleteClip(index int) bool { return e.do(DeleteClip(index)) }
func (e *Editor) InsertGap(frame, n int) bool { return e.do(InsertGap(frame, n)) }
func (e *Editor) CloseGap(frame, n int) bool { return e.do(CloseGap(frame, n)) }

func (e *Editor) AddZoom(start, end int, p effects.ZoomParams) bool {
	return e.do(AddZoom(start, end, p))
}

func (e *Editor) RemoveZoom(start, end int) bool { return e.do(RemoveZoom(start, end)) }

func (e *Editor) UpdateZoom(oldStart, oldEnd, newStart, newEnd int, p effects.ZoomParams) bool {
	return e.do(UpdateZoom(oldStart, oldEnd, newStart, newEnd, p))
}

func (e *Editor) AddTextCard(start, end int, card effects.CardParams) bool {
	return e.do(AddCard(start, end, card.WithDefaults()))
}

func (e *Editor) RemoveTextCard(start, end int) bool { return e.do(RemoveCard(start, end)) }

func (e *Editor) UpdateTextCard(oldStart, oldEnd, newStart, newEnd int, card effects.CardParams) bool {
	return e.do(UpdateCard(oldStart, oldEnd, newStart, newEnd, card.WithDefaults()))
}

// DetectCuts lists the gaps between clips where a card fits.
func (e *Editor) DetectCuts(margin int) []cliptrack.Cut {
	e.mu.Lock()
	ranges := e.comp.ClipRanges()
	e.mu.Unlock()
	return cliptrack.DetectCuts(ranges, margin)
}

// AddTextCardAtCut fills the cut at position with a card.
func (e *Editor) AddTextCardAtCut(position int, card effects.CardParams) bool {
	cuts := e.DetectCuts(e.opts.CutMargin)
	if position < 0 || position >= len(cuts) {
		e.log.Warn().Int("position", position).Int("cuts", len(cuts)).Msg("no such cut")
		return false
	}
	cut := cuts[position]
	return e.AddTextCard(cut.Start, cut.End, card)
}

// FocusZoom adds a zoom over [start, end] aimed at the content visible in
// the base frame at start. It is rejected when the frame has no distinct
// content to magnify.
func (e *Editor) FocusZoom(start, end int) bool {
	e.mu.Lock()
	if !e.comp.Loaded() {
		e.mu.Unlock()
		return false
	}
	img, err := e.comp.Base(start)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn().Err(err).Int("frame", start).Msg("focus frame failed")
		return false
	}
	regions := e.detector.Detect(img)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	e.comp.Release(img)
	e.mu.Unlock()

	x, y, scale, ok := analyzer.Focus(regions, w, h, e.opts.FocusMaxScale)
	if !ok {
		e.log.Warn().Int("frame", start).Int("regions", len(regions)).Msg("no content to focus on")
		return false
	}
	return e.AddZoom(start, end, effects.ZoomParams{
		X:             x,
		Y:             y,
		Scale:         scale,
		EaseInFrames:  effects.DefaultEaseIn,
		EaseOutFrames: effects.DefaultEaseOut,
	})
}

// SetTransform installs or replaces a transform stage and redraws.
func (e *Editor) SetTransform(stage transform.Stage) error {
	e.mu.Lock()
	err := e.comp.Pipeline().Set(stage)
	loaded := e.comp.Loaded()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if loaded {
		e.driver.Refresh()
	}
	return nil
}

// Playback.

func (e *Editor) Play() { e.driver.Play() }
func (e *Editor) Pause() { e.driver.Pause() }
func (e *Editor) TogglePlay() { e.driver.Toggle() }
func (e *Editor) NextFrame() { e.driver.NextFrame() }
func (e *Editor) PrevFrame() { e.driver.PrevFrame() }
func (e *Editor) JumpToFrame(abs int) { e.driver.JumpTo(abs) }
func (e *Editor) Playing() bool { return e.driver.Playing() }

// CurrentFrame is the playhead relative to the start frame.
func (e *Editor) CurrentFrame() int { return e.driver.Current() }

// Frame space and rendering. These satisfy playback.Target and the export
// frame source.

func (e *Editor) StartFrame() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.StartFrame()
}

func (e *Editor) EndFrame() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.EndFrame()
}

func (e *Editor) TotalFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.TotalFrames()
}

func (e *Editor) FPS() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Properties().FPS
}

func (e *Editor) Properties() source.Properties {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Properties()
}

func (e *Editor) OutputSize() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.OutputSize()
}

// RenderFrame composes the frame at abs. Release the result when done.
func (e *Editor) RenderFrame(abs int) (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Render(abs)
}

func (e *Editor) Release(img *image.RGBA) {
	e.comp.Release(img)
}

// Export pauses playback and writes the whole timeline to out with ffmpeg.
// Progress is published as ExportProgress events on the editor's bus.
func (e *Editor) Export(ctx context.Context, out string, opts export.Options) (*export.Report, error) {
	return e.ExportWith(ctx, export.New(ctx, opts, e.bus, e.base), out)
}

func (e *Editor) ExportWith(ctx context.Context, x *export.Exporter, out string) (*export.Report, error) {
	e.driver.Pause()
	e.mu.Lock()
	loaded := e.comp.Loaded()
	e.mu.Unlock()
	if !loaded {
		return nil, source.ErrNotLoaded
	}
	return x.Run(ctx, e, out)
}

// Read-only views.

func (e *Editor) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

func (e *Editor) Segments() []cliptrack.Segment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.track.Segments()
}

func (e *Editor) ClipRanges() []cliptrack.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.ClipRanges()
}

func (e *Editor) Zooms() []effects.Interval[effects.ZoomParams] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Zooms.All()
}

func (e *Editor) Cards() []effects.Interval[effects.CardParams] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Cards.All()
}

// PendingCut returns the recorded cut point, if any.
func (e *Editor) PendingCut() (cliptrack.CutPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.track.PendingCut()
}
