package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/ivlev/vividcut/internal/system"
)

var (
	ErrNotLoaded   = errors.New("no video loaded")
	ErrOutOfBounds = errors.New("frame out of bounds")
)

// Properties describe a frame source.
type Properties struct {
	FPS        float64 `json:"fps" yaml:"fps"`
	Width      int     `json:"width" yaml:"width"`
	Height     int     `json:"height" yaml:"height"`
	FrameCount int     `json:"frame_count" yaml:"frame_count"`
}

// Source yields decoded frames in order. Read returns io.EOF past the last
// frame. Frames come from the shared image pool and belong to the caller.
type Source interface {
	Properties() Properties
	Seek(frame int) error
	Read() (*image.RGBA, error)
	Close() error
}

// Options configure the adapters Open may pick.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	SequenceFPS  float64
	PageDuration float64
	DPI          int
	Logger       zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.SequenceFPS <= 0 {
		o.SequenceFPS = 30
	}
	if o.PageDuration <= 0 {
		o.PageDuration = 3
	}
	if o.DPI <= 0 {
		o.DPI = 150
	}
	return o
}

// Open picks an adapter from the path: a directory or a still image is an
// image sequence, a PDF is a slide deck, anything else goes to ffmpeg.
func Open(ctx context.Context, path string, opts Options) (Source, error) {
	opts = opts.withDefaults()
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case fi.IsDir() || isImageExt(ext):
		return NewImageSource(path, opts.SequenceFPS)
	case ext == ".pdf":
		return NewPDFSource(path, opts.DPI, opts.PageDuration, opts.SequenceFPS)
	default:
		return NewFFmpegSource(ctx, path, opts)
	}
}

// toRGBA converts img into a pooled w×h frame, scaling when sizes differ.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	dst := system.GetImage(image.Rect(0, 0, w, h))
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
