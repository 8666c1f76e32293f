package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/system"
	"github.com/ivlev/vividcut/internal/textcard"
	"github.com/ivlev/vividcut/internal/transform"
)

var ErrNothingToPop = errors.New("trim stack is empty")

// Compositor turns absolute timeline frames into output images. It owns the
// frame-space model (trims, dynamic length) and reads effects from a
// timeline it shares with its owner. It is not safe for concurrent use.
type Compositor struct {
	src      source.Source
	props    source.Properties
	timeline *effects.Timeline
	pipeline *transform.Pipeline
	cards    *textcard.Renderer
	log      zerolog.Logger

	trimLeft   []int
	trimRight  []int
	clipRanges []cliptrack.Range
	nextSource int
}

// New builds a compositor without a source. A nil pipeline means frames are
// used as decoded.
func New(timeline *effects.Timeline, pipeline *transform.Pipeline, cards *textcard.Renderer, logger zerolog.Logger) *Compositor {
	if pipeline == nil {
		pipeline = transform.NewPipeline()
	}
	return &Compositor{
		timeline:   timeline,
		pipeline:   pipeline,
		cards:      cards,
		log:        logger.With().Str("component", "compositor").Logger(),
		nextSource: -1,
	}
}

// SetSource swaps the decoded media and resets the frame space. The previous
// source is closed.
func (c *Compositor) SetSource(src source.Source) {
	if c.src != nil {
		c.src.Close()
	}
	c.src = src
	c.props = source.Properties{}
	if src != nil {
		c.props = src.Properties()
	}
	c.trimLeft = nil
	c.trimRight = nil
	c.clipRanges = nil
	c.nextSource = -1
}

func (c *Compositor) Loaded() bool                  { return c.src != nil }
func (c *Compositor) Properties() source.Properties { return c.props }
func (c *Compositor) Pipeline() *transform.Pipeline { return c.pipeline }

// PhysicalLength is the frame count of the decoded media.
func (c *Compositor) PhysicalLength() int { return c.props.FrameCount }

// StartFrame is the cumulative left trim.
func (c *Compositor) StartFrame() int {
	n := 0
	for _, v := range c.trimLeft {
		n += v
	}
	return n
}

// EndFrame is the latest right trim or the physical length.
func (c *Compositor) EndFrame() int {
	if len(c.trimRight) > 0 {
		return c.trimRight[len(c.trimRight)-1]
	}
	return c.props.FrameCount
}

// TotalFrames is recomputed on every call. Only intervals reaching past the
// physical media extend the timeline, up to and including their last frame;
// an interval inside the media never undoes a right trim.
func (c *Compositor) TotalFrames() int {
	start, end := c.StartFrame(), c.EndFrame()
	if last, ok := c.timeline.MaxEnd(); ok && last >= c.PhysicalLength() {
		end = max(end, last+1)
	}
	return end - start
}

func (c *Compositor) PushTrimLeft(frames int) { c.trimLeft = append(c.trimLeft, frames) }

func (c *Compositor) PopTrimLeft() (int, error) {
	if len(c.trimLeft) == 0 {
		return 0, ErrNothingToPop
	}
	v := c.trimLeft[len(c.trimLeft)-1]
	c.trimLeft = c.trimLeft[:len(c.trimLeft)-1]
	return v, nil
}

func (c *Compositor) PushTrimRight(end int) { c.trimRight = append(c.trimRight, end) }

func (c *Compositor) PopTrimRight() (int, error) {
	if len(c.trimRight) == 0 {
		return 0, ErrNothingToPop
	}
	v := c.trimRight[len(c.trimRight)-1]
	c.trimRight = c.trimRight[:len(c.trimRight)-1]
	return v, nil
}

// Trims returns copies of both trim stacks.
func (c *Compositor) Trims() (left, right []int) {
	return append([]int(nil), c.trimLeft...), append([]int(nil), c.trimRight...)
}

// SetTrims replaces both trim stacks, e.g. from a project file.
func (c *Compositor) SetTrims(left, right []int) {
	c.trimLeft = append([]int(nil), left...)
	c.trimRight = append([]int(nil), right...)
}

// Relative converts an absolute frame into a playback offset.
func (c *Compositor) Relative(abs int) int { return abs - c.StartFrame() }

// Absolute converts a playback offset into an absolute frame.
func (c *Compositor) Absolute(rel int) int { return rel + c.StartFrame() }

// Clamp pins abs into [start, start+total).
func (c *Compositor) Clamp(abs int) int {
	start := c.StartFrame()
	last := start + c.TotalFrames() - 1
	if abs > last {
		abs = last
	}
	if abs < start {
		abs = start
	}
	return abs
}

func (c *Compositor) SetClipRanges(ranges []cliptrack.Range) {
	c.clipRanges = append([]cliptrack.Range(nil), ranges...)
}

func (c *Compositor) ClipRanges() []cliptrack.Range {
	return append([]cliptrack.Range(nil), c.clipRanges...)
}

// SourceFrame maps an absolute frame to the decoded media. Frames past the
// physical length have no source.
func (c *Compositor) SourceFrame(abs int) (int, bool) {
	if abs < 0 || abs >= c.props.FrameCount {
		return 0, false
	}
	return abs, true
}

// OutputSize is the size of every rendered frame.
func (c *Compositor) OutputSize() (int, int) {
	return c.pipeline.OutputSize(c.props.Width, c.props.Height)
}

// Render produces the output frame for abs after clamping it into the
// timeline. The image comes from the shared pool; hand it back with Release.
func (c *Compositor) Render(abs int) (*image.RGBA, error) {
	if c.src == nil {
		return nil, source.ErrNotLoaded
	}
	abs = c.Clamp(abs)
	w, h := c.OutputSize()

	if card, ok := c.timeline.Cards.Active(abs); ok && c.cards != nil {
		c.log.Debug().Int("frame", abs).Int("pos", card.FramePosition).Msg("text card")
		return system.Clone(c.cards.Render(card.Params, card.FramePosition, card.TotalFrames, w, h)), nil
	}

	frame, err := c.decode(abs)
	if err != nil {
		c.log.Warn().Err(err).Int("frame", abs).Msg("decode failed, rendering blank frame")
		return blank(w, h), nil
	}
	if frame == nil {
		return blank(w, h), nil
	}

	out, err := c.pipeline.Apply(frame, abs)
	system.PutImage(frame)
	if err != nil {
		return nil, fmt.Errorf("render frame %d: %w", abs, err)
	}

	if zoom, ok := c.timeline.Zooms.Active(abs); ok {
		p := zoom.Params
		scale := p.ScaleAt(zoom.FramePosition, zoom.TotalFrames)
		if zoomed := ZoomCrop(out, p.X, p.Y, scale); zoomed != out {
			system.PutImage(out)
			out = zoomed
		}
	}
	return out, nil
}

// Base renders abs through the transform pipeline only, without zoom or
// text card. Frames past the media come back blank.
func (c *Compositor) Base(abs int) (*image.RGBA, error) {
	if c.src == nil {
		return nil, source.ErrNotLoaded
	}
	w, h := c.OutputSize()
	frame, err := c.decode(c.Clamp(abs))
	if err != nil {
		c.log.Warn().Err(err).Int("frame", abs).Msg("decode failed, analysing blank frame")
		return blank(w, h), nil
	}
	if frame == nil {
		return blank(w, h), nil
	}
	out, err := c.pipeline.Apply(frame, abs)
	system.PutImage(frame)
	return out, err
}

// Release returns a rendered frame to the pool.
func (c *Compositor) Release(img *image.RGBA) {
	system.PutImage(img)
}

// Close releases the source.
func (c *Compositor) Close() error {
	if c.src == nil {
		return nil
	}
	err := c.src.Close()
	c.src = nil
	return err
}

// decode reads the source frame for abs, seeking only when playback is not
// sequential. A nil frame means the timeline is past the media.
func (c *Compositor) decode(abs int) (*image.RGBA, error) {
	sf, ok := c.SourceFrame(abs)
	if !ok {
		return nil, nil
	}
	if sf != c.nextSource {
		if err := c.src.Seek(sf); err != nil {
			c.nextSource = -1
			return nil, err
		}
	}
	img, err := c.src.Read()
	if err != nil {
		c.nextSource = -1
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	c.nextSource = sf + 1
	return img, nil
}

func blank(w, h int) *image.RGBA {
	img := system.GetImage(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{A: 255}}, image.Point{}, draw.Src)
	return img
}
