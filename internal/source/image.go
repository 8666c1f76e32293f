package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

func isImageExt(ext string) bool {
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ImageSource plays a directory of still frames (sorted by name) at a fixed
// rate. A single image path is a one-frame sequence.
type ImageSource struct {
	paths []string
	props Properties
	pos   int
}

func NewImageSource(path string, fps float64) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImageExt(strings.ToLower(filepath.Ext(entry.Name()))) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("в папке %s нет изображений", path)
	}

	f, err := os.Open(paths[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", paths[0], err)
	}

	return &ImageSource{
		paths: paths,
		props: Properties{FPS: fps, Width: cfg.Width, Height: cfg.Height, FrameCount: len(paths)},
	}, nil
}

func (s *ImageSource) Properties() Properties { return s.props }

func (s *ImageSource) Seek(frame int) error {
	if frame < 0 || frame > len(s.paths) {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, frame)
	}
	s.pos = frame
	return nil
}

func (s *ImageSource) Read() (*image.RGBA, error) {
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	f, err := os.Open(s.paths[s.pos])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[s.pos], err)
	}
	s.pos++
	return toRGBA(img, s.props.Width, s.props.Height), nil
}

func (s *ImageSource) Close() error {
	return nil
}
