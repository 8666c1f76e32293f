package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/system"
)

// resolutions lists output sizes per aspect ratio, smallest first.
var resolutions = map[string][][2]int{
	"16:9": {{1280, 720}, {1920, 1080}, {2560, 1440}, {3840, 2160}},
	"4:3":  {{960, 720}, {1440, 1080}, {1920, 1440}, {2880, 2160}},
	"1:1":  {{720, 720}, {1080, 1080}, {1440, 1440}, {2160, 2160}},
	"9:16": {{720, 1280}, {1080, 1920}, {1440, 2560}, {2160, 3840}},
	"3:4":  {{720, 960}, {1080, 1440}, {1440, 1920}, {2160, 2880}},
}

// AspectRatio picks the canvas size: the largest standard resolution of the
// ratio that fits the screen. "auto" derives the ratio from the input.
type AspectRatio struct {
	Ratio  string
	Screen image.Point
}

func (a *AspectRatio) Name() string { return StageAspectRatio }

func (a *AspectRatio) Apply(f *Frame) error {
	inW, inH := max(1, f.Layout.ForegroundW), max(1, f.Layout.ForegroundH)
	ratio := a.Ratio
	if ratio == "" || strings.EqualFold(ratio, "auto") {
		ratio = reduceRatio(inW, inH)
	}
	screen := a.Screen
	if screen.X <= 0 || screen.Y <= 0 {
		screen = image.Pt(3840, 2160)
	}

	table, ok := resolutions[ratio]
	if !ok {
		w, h := fit(screen.X, screen.Y, inW, inH)
		f.Layout.BackgroundW, f.Layout.BackgroundH = screen.X, screen.Y
		f.Layout.ForegroundW, f.Layout.ForegroundH = w, h
		f.Layout.OffsetX, f.Layout.OffsetY = (screen.X-w)/2, (screen.Y-h)/2
		return nil
	}

	var outW, outH int
	for _, r := range table {
		w, h := r[0], r[1]
		limitW, limitH := screen.X, screen.Y
		if w < h {
			limitW, limitH = screen.Y, screen.X
		}
		if w > limitW || h > limitH {
			break
		}
		outW, outH = w, h
	}
	if outW == 0 {
		outW, outH = table[0][0], table[0][1]
	}
	w, h := fit(outW, outH, inW, inH)
	f.Layout.BackgroundW, f.Layout.BackgroundH = outW, outH
	f.Layout.ForegroundW, f.Layout.ForegroundH = w, h
	f.Layout.OffsetX, f.Layout.OffsetY = (outW-w)/2, (outH-h)/2
	return nil
}

func reduceRatio(w, h int) string {
	a, b := w, h
	for b != 0 {
		a, b = b, a%b
	}
	return fmt.Sprintf("%d:%d", w/a, h/a)
}

// fit shrinks (w, h) to fit inside (maxW, maxH), keeping its aspect.
func fit(maxW, maxH, w, h int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	s := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return int(s * float64(w)), int(s * float64(h))
}

// Padding shrinks the foreground, as a fraction of its width, and centres it.
type Padding struct {
	Fraction float64
}

func (p *Padding) Name() string { return StagePadding }

func (p *Padding) Apply(f *Frame) error {
	l := &f.Layout
	if l.ForegroundW <= 0 || l.ForegroundH <= 0 {
		return nil
	}
	pad := int(float64(l.ForegroundW) * p.Fraction * 0.5)
	w := max(50, l.ForegroundW-2*pad)
	h := w * l.ForegroundH / l.ForegroundW
	l.ForegroundW, l.ForegroundH = w, h
	l.OffsetX = (l.BackgroundW - w) / 2
	l.OffsetY = (l.BackgroundH - h) / 2
	return nil
}

// BorderShadow rounds the foreground corners and drops a soft shadow.
type BorderShadow struct {
	Radius  int
	Blur    int
	Opacity float64
}

func (b *BorderShadow) Name() string { return StageBorderShadow }

func (b *BorderShadow) Apply(f *Frame) error {
	f.Layout.BorderRadius = b.Radius
	f.Layout.ShadowBlur = b.Blur
	f.Layout.ShadowOpacity = b.Opacity
	return nil
}

// Background fills the canvas with a solid colour or a two-colour linear
// gradient at Angle degrees.
type Background struct {
	Kind   string
	Colors []string
	Angle  float64
}

func (b *Background) Name() string { return StageBackground }

func (b *Background) Apply(f *Frame) error {
	switch b.Kind {
	case "gradient":
		if len(b.Colors) < 2 {
			return fmt.Errorf("gradient needs two colors, got %d", len(b.Colors))
		}
		c0, err := system.ParseColor(b.Colors[0])
		if err != nil {
			return err
		}
		c1, err := system.ParseColor(b.Colors[1])
		if err != nil {
			return err
		}
		f.Fill = newGradient(f.Layout.BackgroundW, f.Layout.BackgroundH, c0, c1, b.Angle)
	default:
		c := color.RGBA{A: 0xff}
		if len(b.Colors) > 0 {
			var err error
			if c, err = system.ParseColor(b.Colors[0]); err != nil {
				return err
			}
		}
		f.Fill = image.NewUniform(c)
	}
	return nil
}

// Cursor draws an arrow at the recorded cursor position for each frame.
type Cursor struct {
	Moves map[int]metadata.Move
	Size  float64
	Scale float64
}

func (c *Cursor) Name() string { return StageCursor }

func (c *Cursor) Apply(f *Frame) error {
	mv, ok := c.Moves[f.Index]
	if !ok || f.Input == nil {
		return nil
	}
	size := c.Size
	if size <= 0 {
		size = 32
	}
	if c.Scale > 0 {
		size *= c.Scale
	}
	b := f.Input.Bounds()
	x := float32(float64(b.Dx()) * mv.X)
	y := float32(float64(b.Dy()) * mv.Y)
	drawArrow(f.Input, x, y, float32(size))
	return nil
}

// drawArrow rasterizes a pointer with its tip at (x, y).
func drawArrow(dst *image.RGBA, x, y, size float32) {
	shape := [][2]float32{{0, 0}, {0, 0.8}, {0.22, 0.62}, {0.36, 0.95}, {0.48, 0.9}, {0.34, 0.58}, {0.6, 0.58}}
	paint := func(scale float32, dx, dy float32, c color.Color) {
		b := dst.Bounds()
		r := vector.NewRasterizer(b.Dx(), b.Dy())
		for i, p := range shape {
			px, py := x+dx+p[0]*size*scale, y+dy+p[1]*size*scale
			if i == 0 {
				r.MoveTo(px, py)
			} else {
				r.LineTo(px, py)
			}
		}
		r.ClosePath()
		r.Draw(dst, b, image.NewUniform(c), image.Point{})
	}
	paint(1.12, -size*0.04, -size*0.06, color.Black)
	paint(1.0, 0, 0, color.White)
}

type gradient struct {
	w, h   int
	c0, c1 color.RGBA
	dx, dy float64
	min    float64
	span   float64
}

func newGradient(w, h int, c0, c1 color.RGBA, angle float64) *gradient {
	rad := angle * math.Pi / 180
	g := &gradient{w: w, h: h, c0: c0, c1: c1, dx: math.Cos(rad), dy: math.Sin(rad)}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range [][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}} {
		v := p[0]*g.dx + p[1]*g.dy
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	g.min, g.span = lo, math.Max(hi-lo, 1)
	return g
}

func (g *gradient) ColorModel() color.Model { return color.RGBAModel }
func (g *gradient) Bounds() image.Rectangle { return image.Rect(0, 0, g.w, g.h) }

func (g *gradient) At(x, y int) color.Color {
	t := (float64(x)*g.dx + float64(y)*g.dy - g.min) / g.span
	mix := func(a, b uint8) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t) }
	return color.RGBA{mix(g.c0.R, g.c1.R), mix(g.c0.G, g.c1.G), mix(g.c0.B, g.c1.B), mix(g.c0.A, g.c1.A)}
}

// roundedMask is an alpha mask of a rectangle with rounded corners.
type roundedMask struct {
	rect   image.Rectangle
	radius int
}

func (m *roundedMask) ColorModel() color.Model { return color.AlphaModel }
func (m *roundedMask) Bounds() image.Rectangle { return m.rect }

func (m *roundedMask) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.rect) {
		return color.Alpha{}
	}
	r := min(m.radius, m.rect.Dx()/2, m.rect.Dy()/2)
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r:
		cx = m.rect.Min.X + r
	case x >= m.rect.Max.X-r:
		cx = m.rect.Max.X - r - 1
	}
	switch {
	case y < m.rect.Min.Y+r:
		cy = m.rect.Min.Y + r
	case y >= m.rect.Max.Y-r:
		cy = m.rect.Max.Y - r - 1
	}
	if cx == x || cy == y {
		return color.Alpha{A: 0xff}
	}
	d := math.Hypot(float64(x-cx), float64(y-cy))
	switch {
	case d <= float64(r)-1:
		return color.Alpha{A: 0xff}
	case d >= float64(r):
		return color.Alpha{}
	}
	return color.Alpha{A: uint8((float64(r) - d) * 255)}
}

// drawShadow darkens a blurred-edge rounded rectangle under the foreground.
func drawShadow(dst *image.RGBA, rect image.Rectangle, radius, blur int, opacity float64) {
	off := blur / 2
	for i := blur; i > 0; i-- {
		grown := rect.Add(image.Pt(off, off)).Inset(-i)
		a := uint8(255 * opacity / float64(blur))
		mask := &roundedMask{rect: grown, radius: radius + i}
		draw.DrawMask(dst, grown, image.NewUniform(color.RGBA{A: a}), image.Point{}, mask, grown.Min, draw.Over)
	}
}
