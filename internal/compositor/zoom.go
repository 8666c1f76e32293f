package compositor

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/vividcut/internal/system"
)

// CropWindow returns the region shown at scale, centred on the normalized
// point (x, y) of a w×h frame. A window that would leave the frame is pushed
// back against the edge, never shrunk.
func CropWindow(w, h int, x, y, scale float64) image.Rectangle {
	if scale <= 1 {
		return image.Rect(0, 0, w, h)
	}
	cw := max(1, int(math.Round(float64(w)/scale)))
	ch := max(1, int(math.Round(float64(h)/scale)))

	left := int(math.Round(x*float64(w))) - cw/2
	top := int(math.Round(y*float64(h))) - ch/2
	left = min(max(left, 0), w-cw)
	top = min(max(top, 0), h-ch)
	return image.Rect(left, top, left+cw, top+ch)
}

// ZoomCrop magnifies img around (x, y). For scale <= 1 img itself is
// returned, otherwise a new pooled frame of the same size.
func ZoomCrop(img *image.RGBA, x, y, scale float64) *image.RGBA {
	if scale <= 1 {
		return img
	}
	b := img.Bounds()
	win := CropWindow(b.Dx(), b.Dy(), x, y, scale).Add(b.Min)

	dst := system.GetImage(b)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, win, draw.Src, nil)
	return dst
}
