package compositor

import (
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/textcard"
)

// fakeSource serves solid frames whose red channel encodes the frame index.
type fakeSource struct {
	props source.Properties
	pos   int
	reads int
	seeks int
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{props: source.Properties{FPS: 10, Width: 16, Height: 8, FrameCount: frames}}
}

func (f *fakeSource) Properties() source.Properties { return f.props }

func (f *fakeSource) Seek(frame int) error {
	f.seeks++
	f.pos = frame
	return nil
}

func (f *fakeSource) Read() (*image.RGBA, error) {
	if f.pos >= f.props.FrameCount {
		return nil, io.EOF
	}
	f.reads++
	img := image.NewRGBA(image.Rect(0, 0, f.props.Width, f.props.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{uint8(f.pos), 0, 0, 255}), image.Point{}, draw.Src)
	f.pos++
	return img, nil
}

func (f *fakeSource) Close() error { return nil }

func newTestCompositor(t *testing.T, frames int) (*Compositor, *fakeSource, *effects.Timeline) {
	t.Helper()
	cards, err := textcard.New(textcard.DefaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("textcard.New() error = %v", err)
	}
	tl := effects.NewTimeline()
	c := New(tl, nil, cards, zerolog.Nop())
	src := newFakeSource(frames)
	c.SetSource(src)
	return c, src, tl
}

func TestTextCardExtendsTimeline(t *testing.T) {
	c, src, tl := newTestCompositor(t, 100)

	if got := c.TotalFrames(); got != 100 {
		t.Fatalf("TotalFrames() = %d, want 100", got)
	}

	card := effects.DefaultCard()
	card.BackgroundColor = "#0000ff"
	card.Text = "Hello"
	if _, err := tl.Cards.Add(90, 130, card); err != nil {
		t.Fatal(err)
	}
	if got := c.TotalFrames(); got != 131 {
		t.Errorf("TotalFrames() with card = %d, want 131", got)
	}

	img, err := c.Render(110)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if src.reads != 0 {
		t.Errorf("card frame decoded %d source frames, want 0", src.reads)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("card background = %v, want blue", got)
	}
	c.Release(img)

	tl.Cards.Remove(90, 130)
	if got := c.TotalFrames(); got != 100 {
		t.Errorf("TotalFrames() after removal = %d, want 100", got)
	}
}

func TestRenderPastMediaIsBlank(t *testing.T) {
	c, src, tl := newTestCompositor(t, 20)
	tl.Zooms.Add(25, 30, effects.DefaultZoom())

	img, err := c.Render(27)
	if err != nil {
		t.Fatal(err)
	}
	if src.reads != 0 {
		t.Errorf("reads = %d, want 0 past the media", src.reads)
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("pixel = %v, want black", got)
	}
}

func TestSequentialRenderSeeksOnce(t *testing.T) {
	c, src, _ := newTestCompositor(t, 50)

	for abs := 10; abs < 15; abs++ {
		img, err := c.Render(abs)
		if err != nil {
			t.Fatal(err)
		}
		if got := img.RGBAAt(0, 0).R; int(got) != abs {
			t.Errorf("Render(%d) shows frame %d", abs, got)
		}
		c.Release(img)
	}
	if src.seeks != 1 {
		t.Errorf("seeks = %d, want 1", src.seeks)
	}

	c.Render(3)
	if src.seeks != 2 {
		t.Errorf("seeks after jump = %d, want 2", src.seeks)
	}
}

func TestTrimsAndClamp(t *testing.T) {
	c, _, _ := newTestCompositor(t, 100)

	c.PushTrimLeft(10)
	c.PushTrimLeft(5)
	c.PushTrimRight(80)

	if got := c.StartFrame(); got != 15 {
		t.Errorf("StartFrame() = %d, want 15", got)
	}
	if got := c.EndFrame(); got != 80 {
		t.Errorf("EndFrame() = %d, want 80", got)
	}
	if got := c.TotalFrames(); got != 65 {
		t.Errorf("TotalFrames() = %d, want 65", got)
	}
	if got := c.Relative(20); got != 5 {
		t.Errorf("Relative(20) = %d, want 5", got)
	}
	if got := c.Absolute(5); got != 20 {
		t.Errorf("Absolute(5) = %d, want 20", got)
	}

	tests := []struct{ in, want int }{
		{0, 15},
		{40, 40},
		{79, 79},
		{200, 79},
	}
	for _, tt := range tests {
		if got := c.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if v, err := c.PopTrimLeft(); err != nil || v != 5 {
		t.Errorf("PopTrimLeft() = %d, %v", v, err)
	}
	c.PopTrimLeft()
	if _, err := c.PopTrimLeft(); err != ErrNothingToPop {
		t.Errorf("PopTrimLeft() on empty stack error = %v", err)
	}
	c.PopTrimRight()
	if got := c.EndFrame(); got != 100 {
		t.Errorf("EndFrame() after pop = %d, want 100", got)
	}
}

func TestTrimRightWithEffectInsideMedia(t *testing.T) {
	c, _, tl := newTestCompositor(t, 100)
	if _, err := tl.Zooms.Add(40, 60, effects.DefaultZoom()); err != nil {
		t.Fatal(err)
	}
	c.PushTrimRight(50)

	if got := c.TotalFrames(); got != 50 {
		t.Errorf("TotalFrames() with zoom [40,60] and trim to 50 = %d, want 50", got)
	}
	if got := c.Clamp(70); got != 49 {
		t.Errorf("Clamp(70) = %d, want 49", got)
	}

	card := effects.DefaultCard()
	if _, err := tl.Cards.Add(100, 119, card); err != nil {
		t.Fatal(err)
	}
	if got := c.TotalFrames(); got != 120 {
		t.Errorf("TotalFrames() with card past the media = %d, want 120", got)
	}
}

func TestRenderWithoutSource(t *testing.T) {
	c := New(effects.NewTimeline(), nil, nil, zerolog.Nop())
	if _, err := c.Render(0); err != source.ErrNotLoaded {
		t.Errorf("Render() error = %v, want ErrNotLoaded", err)
	}
}

func TestCropWindow(t *testing.T) {
	tests := []struct {
		name  string
		x, y  float64
		scale float64
		want  image.Rectangle
	}{
		{"no zoom", 0.5, 0.5, 1, image.Rect(0, 0, 100, 50)},
		{"centred", 0.5, 0.5, 2, image.Rect(25, 13, 75, 38)},
		{"pushed to left edge", 0, 0.5, 2, image.Rect(0, 13, 50, 38)},
		{"pushed to bottom right", 1, 1, 2, image.Rect(50, 25, 100, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropWindow(100, 50, tt.x, tt.y, tt.scale)
			if got != tt.want {
				t.Errorf("CropWindow() = %v, want %v", got, tt.want)
			}
			if got.Dx() != tt.want.Dx() || got.Dy() != tt.want.Dy() {
				t.Errorf("window was resized: %v", got)
			}
		})
	}
}

func TestZoomCropMagnifies(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	// left half red, right half green
	draw.Draw(img, image.Rect(0, 0, 10, 20), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 0, 20, 20), image.NewUniform(color.RGBA{0, 255, 0, 255}), image.Point{}, draw.Src)

	if out := ZoomCrop(img, 0.5, 0.5, 1); out != img {
		t.Error("scale 1 should return the input")
	}

	out := ZoomCrop(img, 0, 0.5, 2)
	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if got := out.RGBAAt(15, 10); got.R != 255 || got.G != 0 {
		t.Errorf("zoomed left half should fill the frame, got %v", got)
	}
}
