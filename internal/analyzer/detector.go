package analyzer

import (
	"image"
	"sort"
)

// Region is a block of visible content found in a frame.
type Region struct {
	Rect image.Rectangle
	// Density is the share of edge pixels inside Rect.
	Density float64
}

// Detector finds content regions in a rendered frame.
type Detector interface {
	Detect(img *image.RGBA) []Region
}

// Focus picks the zoom target for regions inside a w x h frame: the centre
// of the box around the dominant regions, normalized to [0, 1], and the
// scale at which that box still fits with some margin. ok is false when
// nothing was found or the content already fills the frame.
func Focus(regions []Region, w, h int, maxScale float64) (x, y, scale float64, ok bool) {
	if len(regions) == 0 || w <= 0 || h <= 0 {
		return 0, 0, 0, false
	}

	sorted := append([]Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return area(sorted[i].Rect) > area(sorted[j].Rect) })

	// regions much smaller than the largest one are noise
	box := sorted[0].Rect
	floor := area(box) / 10
	for _, r := range sorted[1:] {
		if area(r.Rect) >= floor {
			box = box.Union(r.Rect)
		}
	}

	const margin = 0.85
	scale = min(float64(w)/float64(box.Dx()), float64(h)/float64(box.Dy())) * margin
	scale = min(scale, maxScale)
	if scale < minUsefulScale {
		return 0, 0, 0, false
	}

	x = (float64(box.Min.X) + float64(box.Dx())/2) / float64(w)
	y = (float64(box.Min.Y) + float64(box.Dy())/2) / float64(h)
	return x, y, scale, true
}

const minUsefulScale = 1.2

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }
