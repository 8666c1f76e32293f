package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"
)

func frameWithBlock(w, h int, block image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{R: 20, G: 20, B: 20, A: 255}}, image.Point{}, draw.Src)
	draw.Draw(img, block, &image.Uniform{color.RGBA{R: 240, G: 240, B: 240, A: 255}}, image.Point{}, draw.Src)
	return img
}

func TestContrastDetectorFindsBlock(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		block image.Rectangle
	}{
		{"native size", 200, 200, image.Rect(50, 50, 150, 150)},
		{"downscaled", 1280, 720, image.Rect(800, 100, 1100, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regions := NewContrastDetector().Detect(frameWithBlock(tt.w, tt.h, tt.block))
			if len(regions) != 1 {
				t.Fatalf("regions = %+v, want one", regions)
			}
			got := regions[0].Rect
			slack := tt.w / 40
			if abs(got.Min.X-tt.block.Min.X) > slack || abs(got.Max.Y-tt.block.Max.Y) > slack {
				t.Errorf("region = %v, want about %v", got, tt.block)
			}
			if regions[0].Density <= 0 || regions[0].Density > 1 {
				t.Errorf("density = %v", regions[0].Density)
			}
		})
	}
}

func TestContrastDetectorFlatFrame(t *testing.T) {
	img := frameWithBlock(64, 36, image.Rectangle{})
	if regions := NewContrastDetector().Detect(img); len(regions) != 0 {
		t.Fatalf("regions = %+v, want none", regions)
	}
}

func TestFocus(t *testing.T) {
	tests := []struct {
		name      string
		regions   []Region
		wantOK    bool
		wantX     float64
		wantY     float64
		wantScale float64
	}{
		{"nothing", nil, false, 0, 0, 0},
		{
			name:    "quarter of the frame",
			regions: []Region{{Rect: image.Rect(0, 0, 100, 50)}},
			wantOK:  true, wantX: 0.25, wantY: 0.25, wantScale: 1.7,
		},
		{
			name:    "capped scale",
			regions: []Region{{Rect: image.Rect(90, 45, 110, 55)}},
			wantOK:  true, wantX: 0.5, wantY: 0.5, wantScale: 2.5,
		},
		{
			name: "noise ignored",
			regions: []Region{
				{Rect: image.Rect(0, 0, 100, 50)},
				{Rect: image.Rect(190, 90, 192, 92)},
			},
			wantOK: true, wantX: 0.25, wantY: 0.25, wantScale: 1.7,
		},
		{"fills frame", []Region{{Rect: image.Rect(0, 0, 200, 100)}}, false, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, scale, ok := Focus(tt.regions, 200, 100, 2.5)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if math.Abs(x-tt.wantX) > 1e-9 || math.Abs(y-tt.wantY) > 1e-9 || math.Abs(scale-tt.wantScale) > 1e-9 {
				t.Errorf("Focus() = (%v, %v, %v), want (%v, %v, %v)", x, y, scale, tt.wantX, tt.wantY, tt.wantScale)
			}
		})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
