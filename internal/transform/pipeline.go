package transform

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"

	"github.com/ivlev/vividcut/internal/system"
)

// Stage names, in the order the pipeline runs them.
const (
	StageAspectRatio  = "aspect_ratio"
	StagePadding      = "padding"
	StageCursor       = "cursor"
	StageBorderShadow = "border_shadow"
	StageBackground   = "background"
)

var stageOrder = []string{StageAspectRatio, StagePadding, StageCursor, StageBorderShadow, StageBackground}

// Layout describes where the recorded frame (foreground) lands on the
// output canvas (background).
type Layout struct {
	BackgroundW, BackgroundH int
	ForegroundW, ForegroundH int
	OffsetX, OffsetY         int
	BorderRadius             int
	ShadowBlur               int
	ShadowOpacity            float64
}

// Frame is the state passed through the stages.
type Frame struct {
	Input  *image.RGBA
	Index  int
	Layout Layout
	Fill   image.Image
}

// Stage is one independently configurable step.
type Stage interface {
	Name() string
	Apply(f *Frame) error
}

// Pipeline runs the configured stages and composes the result.
type Pipeline struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	p := &Pipeline{stages: make(map[string]Stage)}
	for _, s := range stages {
		p.stages[s.Name()] = s
	}
	return p
}

// Set installs or replaces a stage.
func (p *Pipeline) Set(s Stage) error {
	if !knownStage(s.Name()) {
		return fmt.Errorf("unknown transform stage %q", s.Name())
	}
	p.mu.Lock()
	p.stages[s.Name()] = s
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) Remove(name string) {
	p.mu.Lock()
	delete(p.stages, name)
	p.mu.Unlock()
}

func (p *Pipeline) Get(name string) (Stage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stages[name]
	return s, ok
}

// Names lists installed stages in run order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, n := range stageOrder {
		if _, ok := p.stages[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// OutputSize returns the canvas size for a w×h input.
func (p *Pipeline) OutputSize(w, h int) (int, int) {
	f := &Frame{Layout: identity(w, h)}
	p.mu.RLock()
	if s, ok := p.stages[StageAspectRatio]; ok {
		s.Apply(f)
	}
	p.mu.RUnlock()
	return f.Layout.BackgroundW, f.Layout.BackgroundH
}

// Apply runs every stage on img and returns a new canvas taken from the
// shared image pool. img itself is left untouched unless a stage draws on
// the input (cursor).
func (p *Pipeline) Apply(img *image.RGBA, index int) (*image.RGBA, error) {
	b := img.Bounds()
	f := &Frame{Input: img, Index: index, Layout: identity(b.Dx(), b.Dy())}

	p.mu.RLock()
	for _, name := range stageOrder {
		s, ok := p.stages[name]
		if !ok {
			continue
		}
		if err := s.Apply(f); err != nil {
			p.mu.RUnlock()
			return nil, fmt.Errorf("transform %s: %w", name, err)
		}
	}
	p.mu.RUnlock()

	return compose(f), nil
}

func knownStage(name string) bool {
	for _, n := range stageOrder {
		if n == name {
			return true
		}
	}
	return false
}

func identity(w, h int) Layout {
	return Layout{BackgroundW: w, BackgroundH: h, ForegroundW: w, ForegroundH: h}
}

// compose places the (scaled) input on the background canvas.
func compose(f *Frame) *image.RGBA {
	l := f.Layout
	out := system.GetImage(image.Rect(0, 0, l.BackgroundW, l.BackgroundH))
	fill := f.Fill
	if fill == nil {
		fill = image.NewUniform(color.RGBA{A: 0xff})
	}
	draw.Draw(out, out.Bounds(), fill, image.Point{}, draw.Src)

	dst := image.Rect(l.OffsetX, l.OffsetY, l.OffsetX+l.ForegroundW, l.OffsetY+l.ForegroundH)
	if l.ShadowOpacity > 0 && l.ShadowBlur > 0 {
		drawShadow(out, dst, l.BorderRadius, l.ShadowBlur, l.ShadowOpacity)
	}

	src := f.Input
	if dst.Dx() != src.Bounds().Dx() || dst.Dy() != src.Bounds().Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, dst.Dx(), dst.Dy()))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
		src = scaled
	}

	if l.BorderRadius > 0 {
		mask := &roundedMask{rect: dst, radius: l.BorderRadius}
		draw.DrawMask(out, dst, src, image.Point{}, mask, dst.Min, draw.Over)
	} else {
		draw.Draw(out, dst, src, image.Point{}, draw.Src)
	}
	return out
}
