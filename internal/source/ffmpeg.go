package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/system"
)

// FFmpegSource decodes a video file through an ffmpeg child process that
// streams raw RGBA frames on stdout. Seeking restarts the decoder at the
// requested timestamp; sequential reads reuse the running process.
// Decoders live until Close, not until the context passed to the constructor
// is done: that context only bounds the probe.
type FFmpegSource struct {
	ctx    context.Context
	cancel context.CancelFunc
	path   string
	ffmpeg string
	props  Properties
	log    zerolog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	pos    int
	next   int
}

func NewFFmpegSource(ctx context.Context, path string, opts Options) (*FFmpegSource, error) {
	opts = opts.withDefaults()
	props, err := Probe(ctx, opts.FFprobePath, path)
	if err != nil {
		return nil, err
	}
	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &FFmpegSource{
		ctx:    life,
		cancel: cancel,
		path:   path,
		ffmpeg: opts.FFmpegPath,
		props:  props,
		log:    opts.Logger.With().Str("component", "source").Str("path", path).Logger(),
		next:   -1,
	}, nil
}

// Probe reads stream properties with ffprobe.
func Probe(ctx context.Context, ffprobe, path string) (Properties, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	}
	output, err := exec.CommandContext(ctx, ffprobe, args...).Output()
	if err != nil {
		return Properties{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return Properties{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		props := Properties{
			Width:  stream.Width,
			Height: stream.Height,
			FPS:    parseFrameRate(stream.RFrameRate),
		}
		if props.FPS <= 0 {
			props.FPS = parseFrameRate(stream.AvgFrameRate)
		}
		if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
			props.FrameCount = n
		} else if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			props.FrameCount = int(math.Round(dur * props.FPS))
		}
		if props.Width <= 0 || props.Height <= 0 || props.FPS <= 0 {
			return Properties{}, fmt.Errorf("invalid video stream in %s", path)
		}
		return props, nil
	}
	return Properties{}, fmt.Errorf("no video stream in %s", path)
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// parseFrameRate parses "30000/1001" or "25".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func (s *FFmpegSource) Properties() Properties { return s.props }

func (s *FFmpegSource) Seek(frame int) error {
	if frame < 0 || frame > s.props.FrameCount {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, frame)
	}
	s.pos = frame
	return nil
}

func (s *FFmpegSource) Read() (*image.RGBA, error) {
	if s.pos >= s.props.FrameCount {
		return nil, io.EOF
	}
	if s.cmd == nil || s.next != s.pos {
		if err := s.start(s.pos); err != nil {
			return nil, err
		}
	}

	img := system.GetImage(image.Rect(0, 0, s.props.Width, s.props.Height))
	if _, err := io.ReadFull(s.reader, img.Pix); err != nil {
		system.PutImage(img)
		s.stop()
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame %d: %w", s.pos, err)
	}
	s.pos++
	s.next = s.pos
	return img, nil
}

func (s *FFmpegSource) start(frame int) error {
	s.stop()

	ts := float64(frame) / s.props.FPS
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 6, 64),
		"-i", s.path,
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	s.log.Debug().Int("frame", frame).Strs("args", args).Msg("starting decoder")

	cmd := exec.CommandContext(s.ctx, s.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.cmd, s.stdout = cmd, stdout
	s.reader = bufio.NewReaderSize(stdout, s.props.Width*s.props.Height*4)
	s.next = frame
	return nil
}

func (s *FFmpegSource) stop() {
	if s.cmd == nil {
		return
	}
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	s.cmd, s.stdout, s.reader = nil, nil, nil
	s.next = -1
}

func (s *FFmpegSource) Close() error {
	s.stop()
	s.cancel()
	return nil
}
