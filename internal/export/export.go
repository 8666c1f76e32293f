package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/vividcut/internal/events"
	"github.com/ivlev/vividcut/internal/system"
)

var ErrEmptyTimeline = errors.New("nothing to export")

// FrameSource is the timeline being exported.
type FrameSource interface {
	StartFrame() int
	TotalFrames() int
	FPS() float64
	OutputSize() (int, int)
	RenderFrame(abs int) (*image.RGBA, error)
	Release(img *image.RGBA)
}

type Options struct {
	FFmpegPath   string `yaml:"ffmpeg_path" json:"ffmpeg_path,omitempty"`
	Encoder      string `yaml:"encoder" json:"encoder,omitempty"` // "auto" picks the best H.264 encoder
	Quality      int    `yaml:"quality" json:"quality,omitempty"`
	ShowStats    bool   `yaml:"show_stats" json:"show_stats,omitempty"`
	BenchmarkLog string `yaml:"benchmark_log" json:"benchmark_log,omitempty"`
	BuildVersion string `yaml:"-" json:"-"`
	Buffer       int    `yaml:"buffer" json:"buffer,omitempty"` // frames rendered ahead of the encoder
}

// Exporter renders every frame of a timeline in order and feeds them to an
// encoder. Progress goes to the bus as ExportProgress percentages.
type Exporter struct {
	opts    Options
	encoder Encoder
	bus     *events.Bus
	log     zerolog.Logger
}

// New creates an exporter backed by ffmpeg.
func New(ctx context.Context, opts Options, bus *events.Bus, logger zerolog.Logger) *Exporter {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Encoder == "" || opts.Encoder == "auto" {
		opts.Encoder = system.GetBestH264Encoder(ctx)
	}
	if opts.Quality <= 0 {
		opts.Quality = system.DefaultQuality(opts.Encoder)
	}
	log := logger.With().Str("component", "export").Logger()
	enc := &FFmpegEncoder{Binary: opts.FFmpegPath, Codec: opts.Encoder, Quality: opts.Quality, Log: log}
	return NewWithEncoder(opts, enc, bus, logger)
}

func NewWithEncoder(opts Options, enc Encoder, bus *events.Bus, logger zerolog.Logger) *Exporter {
	if opts.Buffer <= 0 {
		opts.Buffer = 4
	}
	if opts.BenchmarkLog == "" {
		opts.BenchmarkLog = "benchmark.log"
	}
	return &Exporter{
		opts:    opts,
		encoder: enc,
		bus:     bus,
		log:     logger.With().Str("component", "export").Logger(),
	}
}

type rendered struct {
	index int
	img   *image.RGBA
}

// Run writes the timeline to out. A failed or cancelled run removes the
// partial file.
func (x *Exporter) Run(ctx context.Context, src FrameSource, out string) (*Report, error) {
	start, total := src.StartFrame(), src.TotalFrames()
	if total <= 0 {
		return nil, ErrEmptyTimeline
	}
	w, h := src.OutputSize()
	report := &Report{
		JobID:   uuid.NewString(),
		Output:  out,
		Encoder: x.opts.Encoder,
		Frames:  total,
		Width:   w,
		Height:  h,
	}
	log := x.log.With().Str("job", report.JobID).Logger()
	log.Info().Str("output", out).Int("frames", total).Int("width", w).Int("height", h).Msg("export started")

	began := time.Now()
	sink, err := x.encoder.Open(ctx, Stream{Width: w, Height: h, FPS: src.FPS()}, out)
	if err != nil {
		return nil, err
	}

	sampler := newMemSampler()
	sampleEvery := max(1, int(src.FPS()))
	frames := make(chan rendered, x.opts.Buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		for i := 0; i < total; i++ {
			img, err := src.RenderFrame(start + i)
			if err != nil {
				return fmt.Errorf("render frame %d: %w", start+i, err)
			}
			select {
			case frames <- rendered{index: i, img: img}:
			case <-gctx.Done():
				src.Release(img)
				return gctx.Err()
			}
			if i%sampleEvery == 0 {
				sampler.sample()
			}
		}
		return nil
	})
	g.Go(func() error {
		lastPct := -1
		for f := range frames {
			err := writeRawRGBA(sink, f.img)
			src.Release(f.img)
			if err != nil {
				return fmt.Errorf("write raw error: %w", err)
			}
			if pct := (f.index + 1) * 100 / total; pct != lastPct {
				lastPct = pct
				x.progress(float64(pct))
			}
		}
		return nil
	})

	runErr := g.Wait()
	for f := range frames {
		src.Release(f.img)
	}
	report.Rendering = time.Since(began)

	finalizing := time.Now()
	closeErr := sink.Close()
	if runErr == nil {
		runErr = closeErr
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		os.Remove(out)
		log.Error().Err(runErr).Msg("export failed")
		return nil, runErr
	}

	sampler.sample()
	report.Finalizing = time.Since(finalizing)
	report.Total = time.Since(began)
	report.PeakRSS = sampler.peak
	report.MemUsedPct = systemMemUsed()
	if s := report.Total.Seconds(); s > 0 {
		report.EffectiveFPS = float64(total) / s
	}

	log.Info().
		Dur("total", report.Total).
		Float64("fps", report.EffectiveFPS).
		Uint64("peak_rss", report.PeakRSS).
		Msg("export finished")

	if x.opts.ShowStats {
		report.Print(x.opts.BuildVersion)
		if err := report.AppendLog(x.opts.BenchmarkLog, x.opts.BuildVersion); err != nil {
			fmt.Printf("[!] Не удалось записать %s: %v\n", x.opts.BenchmarkLog, err)
		}
	}
	return report, nil
}

func (x *Exporter) progress(pct float64) {
	if x.bus != nil {
		x.bus.Emit(events.ExportProgress, pct)
	}
}
