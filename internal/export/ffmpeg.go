package export

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/vividcut/internal/system"
)

// Stream describes the raw frames handed to an encoder.
type Stream struct {
	Width  int
	Height int
	FPS    float64
}

// Encoder turns a stream of raw RGBA frames into a file. Closing the
// returned writer finishes the file.
type Encoder interface {
	Open(ctx context.Context, s Stream, out string) (io.WriteCloser, error)
}

// FFmpegEncoder pipes rawvideo RGBA into ffmpeg's stdin.
type FFmpegEncoder struct {
	Binary  string
	Codec   string
	Quality int
	Log     zerolog.Logger
}

// Args builds the ffmpeg command line for a stream.
func (e *FFmpegEncoder) Args(s Stream, out string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", fmt.Sprintf("%g", s.FPS),
		"-i", "-",
		"-an",
		// yuv420p needs even dimensions
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", e.Codec,
	}
	args = append(args, system.QualityArgs(e.Codec, e.Quality)...)
	return append(args, out)
}

func (e *FFmpegEncoder) Open(ctx context.Context, s Stream, out string) (io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, e.Binary, e.Args(s, out)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	p := &ffmpegPipe{cmd: cmd, stdin: stdin}
	p.drain.Go(func() error {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			e.Log.Debug().Str("ffmpeg", line).Msg("encoder output")
			p.remember(line)
		}
		return sc.Err()
	})
	return p, nil
}

const tailLines = 20

type ffmpegPipe struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	drain errgroup.Group

	mu   sync.Mutex
	tail []string
}

func (p *ffmpegPipe) remember(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > tailLines {
		p.tail = p.tail[len(p.tail)-tailLines:]
	}
}

func (p *ffmpegPipe) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close ends the input and waits for ffmpeg to finish the file. A failed
// run reports the last lines ffmpeg printed.
func (p *ffmpegPipe) Close() error {
	p.stdin.Close()
	drainErr := p.drain.Wait()
	if err := p.cmd.Wait(); err != nil {
		p.mu.Lock()
		log := strings.Join(p.tail, "\n")
		p.mu.Unlock()
		return fmt.Errorf("ffmpeg wait error: %w\nLog: %s", err, log)
	}
	return drainErr
}

// writeRawRGBA writes tightly packed RGBA rows, copying when the image
// has padding or a non-zero origin.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	if img.Stride != bounds.Dx()*4 || bounds.Min.X != 0 || bounds.Min.Y != 0 {
		packed := system.GetImage(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		defer system.PutImage(packed)
		draw.Draw(packed, packed.Bounds(), img, bounds.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}
