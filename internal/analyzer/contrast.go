package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector finds content by edge density: Sobel gradients on a
// downscaled luminance plane, dilated so glyphs merge into blocks, then
// grouped into connected components.
type ContrastDetector struct {
	// AnalysisWidth is the width frames are reduced to before detection.
	AnalysisWidth int
	EdgeThreshold float64
	// MinArea drops components smaller than this share of the frame.
	MinArea    float64
	DilateSize int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		AnalysisWidth: 320,
		EdgeThreshold: 48,
		MinArea:       0.002,
		DilateSize:    3,
	}
}

func (d *ContrastDetector) Detect(img *image.RGBA) []Region {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	small := img
	factor := 1.0
	if b.Dx() > d.AnalysisWidth && d.AnalysisWidth > 0 {
		factor = float64(b.Dx()) / float64(d.AnalysisWidth)
		h := max(1, int(float64(b.Dy())/factor))
		small = image.NewRGBA(image.Rect(0, 0, d.AnalysisWidth, h))
		draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)
	}

	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	lum := luminance(small)
	edges := sobel(lum, w, h, d.EdgeThreshold)
	grown := dilate(edges, w, h, d.DilateSize)

	minArea := int(d.MinArea * float64(w*h))
	var regions []Region
	for _, c := range components(grown, w, h) {
		if area(c) < max(minArea, 1) {
			continue
		}
		regions = append(regions, Region{
			Rect: image.Rect(
				b.Min.X+int(float64(c.Min.X)*factor),
				b.Min.Y+int(float64(c.Min.Y)*factor),
				b.Min.X+int(math.Ceil(float64(c.Max.X)*factor)),
				b.Min.Y+int(math.Ceil(float64(c.Max.Y)*factor)),
			).Intersect(b),
			Density: density(edges, w, c),
		})
	}
	return regions
}

func luminance(img *image.RGBA) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			out[y*w+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return out
}

func sobel(lum []float64, w, h int, threshold float64) []bool {
	out := make([]bool, w*h)
	at := func(x, y int) float64 { return lum[y*w+x] }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			out[y*w+x] = math.Hypot(gx, gy) > threshold
		}
	}
	return out
}

// dilate grows set pixels by r in every direction, rows then columns.
func dilate(in []bool, w, h, r int) []bool {
	if r <= 0 {
		return in
	}
	rows := make([]bool, w*h)
	for y := 0; y < h; y++ {
		last := -r - 1
		for x := 0; x < w; x++ {
			if in[y*w+x] {
				last = x
			}
			if x-last <= r {
				rows[y*w+x] = true
			}
		}
		last = w + r + 1
		for x := w - 1; x >= 0; x-- {
			if in[y*w+x] {
				last = x
			}
			if last-x <= r {
				rows[y*w+x] = true
			}
		}
	}

	out := make([]bool, w*h)
	for x := 0; x < w; x++ {
		last := -r - 1
		for y := 0; y < h; y++ {
			if rows[y*w+x] {
				last = y
			}
			if y-last <= r {
				out[y*w+x] = true
			}
		}
		last = h + r + 1
		for y := h - 1; y >= 0; y-- {
			if rows[y*w+x] {
				last = y
			}
			if last-y <= r {
				out[y*w+x] = true
			}
		}
	}
	return out
}

// components returns the bounding boxes of 4-connected set pixels.
func components(mask []bool, w, h int) []image.Rectangle {
	seen := make([]bool, w*h)
	var out []image.Rectangle
	var stack []int
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		r := image.Rect(start%w, start/w, start%w+1, start/w+1)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			r = r.Union(image.Rect(x, y, x+1, y+1))
			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				if n < 0 || n >= w*h || seen[n] || !mask[n] {
					continue
				}
				// no wrap across rows
				if (n == i-1 && x == 0) || (n == i+1 && x == w-1) {
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}
		out = append(out, r)
	}
	return out
}

func density(edges []bool, w int, r image.Rectangle) float64 {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if edges[y*w+x] {
				n++
			}
		}
	}
	return float64(n) / float64(area(r))
}
