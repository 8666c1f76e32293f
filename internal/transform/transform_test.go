package transform

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/draw"

	"github.com/ivlev/vividcut/internal/metadata"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestEmptyPipelineKeepsSize(t *testing.T) {
	p := NewPipeline()
	in := solid(64, 36, color.RGBA{200, 10, 10, 255})

	out, err := p.Apply(in, 0)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Bounds() != in.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), in.Bounds())
	}
	if got := out.RGBAAt(10, 10); got != in.RGBAAt(10, 10) {
		t.Errorf("pixel = %v, want %v", got, in.RGBAAt(10, 10))
	}
}

func TestAspectRatioOutputSize(t *testing.T) {
	tests := []struct {
		name   string
		ratio  string
		screen image.Point
		inW    int
		inH    int
		wantW  int
		wantH  int
	}{
		{"auto 16:9 on 1080p screen", "auto", image.Pt(1920, 1080), 1920, 1080, 1920, 1080},
		{"16:9 capped by screen", "16:9", image.Pt(2560, 1600), 3000, 2000, 2560, 1440},
		{"portrait", "9:16", image.Pt(1920, 1080), 1080, 1920, 1080, 1920},
		{"square", "1:1", image.Pt(1920, 1080), 800, 600, 1080, 1080},
		{"non-standard falls back to screen", "5:4", image.Pt(1280, 1024), 640, 512, 1280, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(&AspectRatio{Ratio: tt.ratio, Screen: tt.screen})
			w, h := p.OutputSize(tt.inW, tt.inH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("OutputSize() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestPaddingAndBackground(t *testing.T) {
	p := NewPipeline(
		&Padding{Fraction: 0.5},
		&Background{Kind: "color", Colors: []string{"#00ff00"}},
	)
	in := solid(200, 100, color.RGBA{255, 0, 0, 255})

	out, err := p.Apply(in, 0)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := out.RGBAAt(2, 2); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("border pixel = %v, want background green", got)
	}
	if got := out.RGBAAt(100, 50); got.R < 200 {
		t.Errorf("centre pixel = %v, want foreground red", got)
	}
}

func TestBorderShadowRoundsCorners(t *testing.T) {
	p := NewPipeline(
		&Padding{Fraction: 0.2},
		&BorderShadow{Radius: 20},
		&Background{Colors: []string{"white"}},
	)
	in := solid(400, 200, color.RGBA{0, 0, 0, 255})
	out, _ := p.Apply(in, 0)

	l := Layout{ForegroundW: 320, ForegroundH: 160}
	ox, oy := (400-l.ForegroundW)/2, (200-l.ForegroundH)/2
	if got := out.RGBAAt(ox, oy); got.R < 200 {
		t.Errorf("rounded corner pixel = %v, want background", got)
	}
	if got := out.RGBAAt(ox+160, oy+80); got.R > 50 {
		t.Errorf("centre pixel = %v, want foreground", got)
	}
}

func TestGradientBackground(t *testing.T) {
	p := NewPipeline(&Background{Kind: "gradient", Colors: []string{"black", "white"}, Angle: 0})
	out, err := p.Apply(image.NewRGBA(image.Rect(0, 0, 1, 1)), 0)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	_ = out

	bad := NewPipeline(&Background{Kind: "gradient", Colors: []string{"black"}})
	if _, err := bad.Apply(image.NewRGBA(image.Rect(0, 0, 4, 4)), 0); err == nil {
		t.Error("expected error for single-colour gradient")
	}
}

func TestCursorDrawsOnlyOnRecordedFrames(t *testing.T) {
	moves := map[int]metadata.Move{3: {X: 0.5, Y: 0.5, State: "arrow"}}
	p := NewPipeline(&Cursor{Moves: moves, Size: 16})

	blank := solid(64, 64, color.RGBA{0, 0, 255, 255})
	out, _ := p.Apply(blank, 0)
	if got := out.RGBAAt(33, 38); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("frame without cursor sample changed: %v", got)
	}

	withCursor := solid(64, 64, color.RGBA{0, 0, 255, 255})
	out, _ = p.Apply(withCursor, 3)
	if got := out.RGBAAt(33, 38); got == (color.RGBA{0, 0, 255, 255}) {
		t.Error("cursor not drawn at recorded position")
	}
}

func TestSetRejectsUnknownStage(t *testing.T) {
	p := NewPipeline()
	if err := p.Set(&fakeStage{name: "sparkle"}); err == nil {
		t.Error("expected error for unknown stage")
	}
	if err := p.Set(&Padding{Fraction: 0.1}); err != nil {
		t.Errorf("Set(padding) error = %v", err)
	}
	if names := p.Names(); len(names) != 1 || names[0] != StagePadding {
		t.Errorf("Names() = %v", names)
	}
}

type fakeStage struct{ name string }

func (f *fakeStage) Name() string         { return f.name }
func (f *fakeStage) Apply(fr *Frame) error { return nil }
