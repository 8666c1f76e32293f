package source

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gen2brain/go-fitz"
)

// PDFSource presents a slide deck as video: every page is held for a fixed
// number of frames. Pages are scaled to the size of the first one.
type PDFSource struct {
	doc           *fitz.Document
	dpi           int
	framesPerPage int
	props         Properties
	pos           int

	cachedPage int
	cached     image.Image
}

func NewPDFSource(path string, dpi int, pageDuration, fps float64) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	pages := doc.NumPage()
	if pages == 0 {
		doc.Close()
		return nil, fmt.Errorf("источник %s не содержит страниц", path)
	}
	first, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("render page 0: %w", err)
	}

	per := max(1, int(math.Round(pageDuration*fps)))
	b := first.Bounds()
	// Even sizes keep yuv420p encoders happy.
	w, h := b.Dx()&^1, b.Dy()&^1

	return &PDFSource{
		doc:           doc,
		dpi:           dpi,
		framesPerPage: per,
		props:         Properties{FPS: fps, Width: w, Height: h, FrameCount: pages * per},
		cachedPage:    0,
		cached:        first,
	}, nil
}

func (s *PDFSource) Properties() Properties { return s.props }

func (s *PDFSource) Seek(frame int) error {
	if frame < 0 || frame > s.props.FrameCount {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, frame)
	}
	s.pos = frame
	return nil
}

func (s *PDFSource) Read() (*image.RGBA, error) {
	if s.pos >= s.props.FrameCount {
		return nil, io.EOF
	}
	page := s.pos / s.framesPerPage
	if page != s.cachedPage || s.cached == nil {
		img, err := s.doc.ImageDPI(page, float64(s.dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", page, err)
		}
		s.cachedPage, s.cached = page, img
	}
	s.pos++
	return toRGBA(s.cached, s.props.Width, s.props.Height), nil
}

// PageAt returns the page shown at frame.
func (s *PDFSource) PageAt(frame int) int {
	return frame / s.framesPerPage
}

func (s *PDFSource) Close() error {
	return s.doc.Close()
}
