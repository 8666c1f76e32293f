package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/vividcut/internal/events"
)

type fakeTimeline struct {
	start, total int
	w, h         int
	failAt       int

	mu       sync.Mutex
	rendered []int
	released int
}

func (f *fakeTimeline) StartFrame() int        { return f.start }
func (f *fakeTimeline) TotalFrames() int       { return f.total }
func (f *fakeTimeline) FPS() float64           { return 10 }
func (f *fakeTimeline) OutputSize() (int, int) { return f.w, f.h }

func (f *fakeTimeline) RenderFrame(abs int) (*image.RGBA, error) {
	if f.failAt > 0 && abs == f.failAt {
		return nil, errors.New("boom")
	}
	f.mu.Lock()
	f.rendered = append(f.rendered, abs)
	f.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, f.w, f.h))
	img.Pix[0] = uint8(abs)
	return img, nil
}

func (f *fakeTimeline) Release(*image.RGBA) {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

// memEncoder collects the raw stream in memory.
type memEncoder struct {
	stream Stream
	buf    bytes.Buffer
	closed bool
}

func (m *memEncoder) Open(_ context.Context, s Stream, out string) (io.WriteCloser, error) {
	m.stream = s
	return m, nil
}

func (m *memEncoder) Write(b []byte) (int, error) { return m.buf.Write(b) }
func (m *memEncoder) Close() error                { m.closed = true; return nil }

func TestRunWritesEveryFrame(t *testing.T) {
	src := &fakeTimeline{start: 5, total: 12, w: 4, h: 2}
	enc := &memEncoder{}
	bus := events.NewBus()
	var progress []float64
	bus.Subscribe(func(e events.Event) {
		if e.Name == events.ExportProgress {
			progress = append(progress, e.Data.(float64))
		}
	})

	x := NewWithEncoder(Options{Buffer: 2}, enc, bus, zerolog.Nop())
	report, err := x.Run(context.Background(), src, filepath.Join(t.TempDir(), "out.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got, want := enc.buf.Len(), 12*4*2*4; got != want {
		t.Errorf("stream size = %d, want %d", got, want)
	}
	if enc.stream != (Stream{Width: 4, Height: 2, FPS: 10}) {
		t.Errorf("stream = %+v", enc.stream)
	}
	if !enc.closed {
		t.Error("encoder was not closed")
	}
	// frames arrive in timeline order
	raw := enc.buf.Bytes()
	for i := 0; i < 12; i++ {
		if got := raw[i*32]; got != uint8(5+i) {
			t.Fatalf("frame %d starts with %d, want %d", i, got, 5+i)
		}
	}
	if src.released != 12 {
		t.Errorf("released %d frames, want 12", src.released)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Errorf("progress not increasing: %v", progress)
			break
		}
	}
	if report.Frames != 12 || report.JobID == "" {
		t.Errorf("report = %+v", report)
	}
}

func TestRunFailureRemovesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(out, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	src := &fakeTimeline{total: 10, w: 2, h: 2, failAt: 6}

	x := NewWithEncoder(Options{}, &memEncoder{}, nil, zerolog.Nop())
	if _, err := x.Run(context.Background(), src, out); err == nil || !strings.Contains(err.Error(), "render frame 6") {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("partial output should be removed")
	}
	if len(src.rendered) != src.released {
		t.Errorf("rendered %d frames but released %d", len(src.rendered), src.released)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := NewWithEncoder(Options{}, &memEncoder{}, nil, zerolog.Nop())
	_, err := x.Run(ctx, &fakeTimeline{total: 50, w: 2, h: 2}, filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunEmpty(t *testing.T) {
	x := NewWithEncoder(Options{}, &memEncoder{}, nil, zerolog.Nop())
	if _, err := x.Run(context.Background(), &fakeTimeline{w: 2, h: 2}, "x.mp4"); !errors.Is(err, ErrEmptyTimeline) {
		t.Errorf("Run() error = %v, want ErrEmptyTimeline", err)
	}
}

func TestShowStatsAppendsBenchmark(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "benchmark.log")
	x := NewWithEncoder(Options{ShowStats: true, BenchmarkLog: logPath, BuildVersion: "test"}, &memEncoder{}, nil, zerolog.Nop())
	if _, err := x.Run(context.Background(), &fakeTimeline{total: 3, w: 2, h: 2}, "clip.mp4"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "Build: test") || !strings.Contains(line, "Output: clip.mp4") || !strings.Contains(line, "Frames: 3") {
		t.Errorf("benchmark entry = %q", line)
	}
}

func TestWriteRawRGBAPacksSubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2*2*4 {
		t.Fatalf("wrote %d bytes, want 16", buf.Len())
	}
	// first pixel of the sub image is (1,1) of the parent
	if got := buf.Bytes()[0]; got != uint8(1*16+1*4) {
		t.Errorf("first byte = %d, want %d", got, 20)
	}
}

func TestFFmpegArgs(t *testing.T) {
	enc := &FFmpegEncoder{Binary: "ffmpeg", Codec: "libx264", Quality: 20}
	args := strings.Join(enc.Args(Stream{Width: 1280, Height: 720, FPS: 29.97}, "out.mp4"), " ")
	for _, want := range []string{"-f rawvideo", "-pixel_format rgba", "-video_size 1280x720", "-framerate 29.97", "-i -", "-c:v libx264", "-crf 20", "out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestFFmpegExport(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil || !strings.Contains(string(out), "libx264") {
		t.Skip("libx264 not available")
	}

	path := filepath.Join(t.TempDir(), "out.mp4")
	x := New(context.Background(), Options{Encoder: "libx264"}, nil, zerolog.Nop())
	if _, err := x.Run(context.Background(), &fakeTimeline{total: 10, w: 64, h: 36}, path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("output missing or empty: %v", err)
	}
}
