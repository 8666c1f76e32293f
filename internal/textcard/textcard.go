package textcard

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/system"
)

// TypingShare is the fraction of a card's duration spent typing.
const TypingShare = 0.8

// caret blinks on for half of every blinkPeriod frames.
const blinkPeriod = 30

// Options sets the cache capacity per resolution tier.
type Options struct {
	CapacityHD    int
	CapacityUHD4K int
	CapacityUHD8K int
}

func DefaultOptions() Options {
	return Options{CapacityHD: 120, CapacityUHD4K: 30, CapacityUHD8K: 8}
}

type cacheKey struct {
	card  effects.CardParams
	frame int
	total int
	w, h  int
}

// Renderer draws text cards with a typewriter animation. Rendered frames are
// cached per tier in bounded LRU caches. Returned images are shared with the
// cache and must not be modified.
type Renderer struct {
	ttf    *opentype.Font
	caches map[Tier]*lru.Cache[cacheKey, *image.RGBA]
	log    zerolog.Logger

	mu    sync.Mutex
	faces map[float64]font.Face
}

func New(opts Options, logger zerolog.Logger) (*Renderer, error) {
	ttf, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	r := &Renderer{
		ttf:    ttf,
		caches: make(map[Tier]*lru.Cache[cacheKey, *image.RGBA]),
		faces:  make(map[float64]font.Face),
		log:    logger.With().Str("component", "textcard").Logger(),
	}
	for tier, size := range map[Tier]int{
		TierHD:    opts.CapacityHD,
		TierUHD4K: opts.CapacityUHD4K,
		TierUHD8K: opts.CapacityUHD8K,
	} {
		if size <= 0 {
			size = 1
		}
		c, err := lru.New[cacheKey, *image.RGBA](size)
		if err != nil {
			return nil, err
		}
		r.caches[tier] = c
	}
	return r, nil
}

// Progress is the typed fraction of the text at framePos.
func Progress(framePos, totalFrames int) float64 {
	if totalFrames <= 0 {
		return 1
	}
	return math.Min(1, float64(framePos)/(float64(totalFrames)*TypingShare))
}

// Visible returns the prefix of text revealed at framePos.
func Visible(text string, framePos, totalFrames int) string {
	runes := []rune(text)
	n := int(math.Floor(float64(len(runes)) * Progress(framePos, totalFrames)))
	if n < 0 {
		n = 0
	}
	return string(runes[:min(n, len(runes))])
}

// CaretVisible reports whether the caret is drawn at framePos.
func CaretVisible(text string, framePos, totalFrames int) bool {
	if len([]rune(Visible(text, framePos, totalFrames))) >= len([]rune(text)) {
		return false
	}
	return framePos%blinkPeriod < blinkPeriod/2
}

// Render draws card at framePos of totalFrames on a w×h canvas.
func (r *Renderer) Render(card effects.CardParams, framePos, totalFrames, w, h int) *image.RGBA {
	card = card.WithDefaults()
	tier := TierFor(w, h)
	key := cacheKey{card: card, frame: framePos, total: totalFrames, w: w, h: h}
	cache := r.caches[tier]
	if img, ok := cache.Get(key); ok {
		return img
	}

	img := r.draw(card, framePos, totalFrames, w, h, tier)
	cache.Add(key, img)
	return img
}

// CacheLen returns the number of cached frames in a tier.
func (r *Renderer) CacheLen(t Tier) int {
	return r.caches[t].Len()
}

// Purge drops every cached frame.
func (r *Renderer) Purge() {
	for _, c := range r.caches {
		c.Purge()
	}
}

func (r *Renderer) draw(card effects.CardParams, framePos, totalFrames, w, h int, tier Tier) *image.RGBA {
	bg := system.MustColor(card.BackgroundColor, color.RGBA{A: 0xff})
	fg := system.MustColor(card.TextColor, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	m := tier.Metrics(card.TextSize)
	if card.Link != "" {
		r.drawLink(img, card.Link, fg, bg, m.Padding)
	}

	text := Visible(card.Text, framePos, totalFrames)
	caret := CaretVisible(card.Text, framePos, totalFrames)
	if text == "" && !caret {
		return img
	}

	face, err := r.face(m.FontSize)
	if err != nil {
		r.log.Warn().Err(err).Float64("size", m.FontSize).Msg("font face unavailable, drawing background only")
		return img
	}

	lines := strings.Split(text, "\n")
	fm := face.Metrics()
	ascent := fm.Ascent.Ceil()
	lineHeight := (fm.Ascent + fm.Descent).Ceil()
	step := int(float64(lineHeight) * m.LineSpacing)
	blockH := step*(len(lines)-1) + lineHeight

	var top int
	switch card.VerticalAlign {
	case "top":
		top = m.Padding
	case "bottom":
		top = h - blockH - m.Padding
	default:
		top = (h - blockH) / 2
	}

	d := &font.Drawer{Dst: img, Face: face}
	var lastX, lastW, lastBase int
	for i, line := range lines {
		width := d.MeasureString(line).Ceil()
		var x int
		switch card.HorizontalAlign {
		case "left":
			x = m.Padding
		case "right":
			x = w - width - m.Padding
		default:
			x = (w - width) / 2
		}
		base := top + ascent + i*step

		if m.Outline > 0 {
			d.Src = image.NewUniform(system.Contrast(fg))
			for _, off := range ring(m.Outline) {
				d.Dot = fixed.P(x+off.X, base+off.Y)
				d.DrawString(line)
			}
		}
		d.Src = image.NewUniform(fg)
		for dx := 0; dx < m.Thickness; dx++ {
			d.Dot = fixed.P(x+dx, base)
			d.DrawString(line)
		}
		lastX, lastW, lastBase = x, width, base
	}

	if caret {
		cx := lastX + lastW + m.CaretGap
		if card.HorizontalAlign == "right" {
			cx = w - m.Padding + m.CaretGap
		}
		caretRect := image.Rect(cx, lastBase-ascent, cx+max(2, m.Thickness*2), lastBase)
		draw.Draw(img, caretRect.Intersect(img.Bounds()), &image.Uniform{C: fg}, image.Point{}, draw.Src)
	}
	return img
}

// drawLink puts a QR code for link in the bottom-right corner, sized to a
// quarter of the card height.
func (r *Renderer) drawLink(img *image.RGBA, link string, fg, bg color.RGBA, padding int) {
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		r.log.Warn().Err(err).Str("link", link).Msg("qr code skipped")
		return
	}
	q.ForegroundColor = fg
	q.BackgroundColor = bg

	b := img.Bounds()
	size := b.Dy() / 4
	if size < 21 {
		return
	}
	code := q.Image(size)
	at := image.Pt(b.Max.X-padding-code.Bounds().Dx(), b.Max.Y-padding-code.Bounds().Dy())
	draw.Draw(img, code.Bounds().Add(at).Intersect(b), code, code.Bounds().Min, draw.Src)
}

func (r *Renderer) face(size float64) (font.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.ttf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	r.faces[size] = f
	return f, nil
}

// ring lists offsets on the square of radius n, used for the outline pass.
func ring(n int) []image.Point {
	var pts []image.Point
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if dx == -n || dx == n || dy == -n || dy == n {
				pts = append(pts, image.Point{X: dx, Y: dy})
			}
		}
	}
	return pts
}
