package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA frames, one sync.Pool per frame rectangle.
//
// Decoded source frames, compositor output and blank fill frames all come
// from the shared pool. Whoever receives a rendered frame owns it until it
// calls PutImage: the playback driver releases each frame after its
// listeners have run, the exporter after piping it to the encoder. Text card
// frames stay in the card cache and are handed out as pooled copies (Clone),
// so every frame leaving the compositor can be released the same way.
type ImagePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var globalPool = NewImagePool()

// GetImage returns a frame of the given bounds. Its pixels are not cleared.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage hands a frame back for reuse. The caller must not touch it after.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put drops frames of a rectangle the pool never handed out.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}

// Clone copies src into a pooled frame.
func Clone(src *image.RGBA) *image.RGBA {
	dst := GetImage(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
