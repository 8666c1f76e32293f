package config

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/export"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/textcard"
	"github.com/ivlev/vividcut/internal/transform"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	Verbose bool `yaml:"verbose"`

	Editor   EditorConfig   `yaml:"editor"`
	Render   RenderConfig   `yaml:"render"`
	TextCard TextCardConfig `yaml:"textcard"`
	Source   SourceConfig   `yaml:"source"`
	Export   export.Options `yaml:"export"`
	API      APIConfig      `yaml:"api"`
}

type EditorConfig struct {
	PixelsPerFrame float64 `yaml:"pixels_per_frame"`
	HistoryLimit   int     `yaml:"history_limit"`
	AutoZoom       bool    `yaml:"auto_zoom"`
	CutMargin      int     `yaml:"cut_margin"`
	FocusMaxScale  float64 `yaml:"focus_max_scale"`
	ProjectDir     string  `yaml:"project_dir"`
}

type RenderConfig struct {
	AspectRatio   string           `yaml:"aspect_ratio"` // empty keeps the source size
	ScreenWidth   int              `yaml:"screen_width"`
	ScreenHeight  int              `yaml:"screen_height"`
	Padding       float64          `yaml:"padding"`
	BorderRadius  int              `yaml:"border_radius"`
	ShadowBlur    int              `yaml:"shadow_blur"`
	ShadowOpacity float64          `yaml:"shadow_opacity"`
	Background    BackgroundConfig `yaml:"background"`
	CursorScale   float64          `yaml:"cursor_scale"`
}

type BackgroundConfig struct {
	Kind   string   `yaml:"kind"` // solid or gradient; empty disables the stage
	Colors []string `yaml:"colors"`
	Angle  float64  `yaml:"angle"`
}

type TextCardConfig struct {
	CacheHD int `yaml:"cache_hd"`
	Cache4K int `yaml:"cache_4k"`
	Cache8K int `yaml:"cache_8k"`
}

type SourceConfig struct {
	FFmpegPath   string  `yaml:"ffmpeg_path"`
	FFprobePath  string  `yaml:"ffprobe_path"`
	SequenceFPS  float64 `yaml:"sequence_fps"`
	PageDuration float64 `yaml:"page_duration"`
	DPI          int     `yaml:"dpi"`
}

type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	tc := textcard.DefaultOptions()
	return &Config{
		Editor: EditorConfig{
			PixelsPerFrame: 10,
			HistoryLimit:   500,
			AutoZoom:       true,
			CutMargin:      editor.DefaultCutMargin,
			FocusMaxScale:  editor.DefaultFocusMaxScale,
			ProjectDir:     "./projects",
		},
		Render: RenderConfig{
			ScreenWidth:   3840,
			ScreenHeight:  2160,
			ShadowOpacity: 0.35,
			CursorScale:   1.0,
			Background: BackgroundConfig{
				Colors: []string{"#1e3c72", "#2a5298"},
				Angle:  135,
			},
		},
		TextCard: TextCardConfig{
			CacheHD: tc.CapacityHD,
			Cache4K: tc.CapacityUHD4K,
			Cache8K: tc.CapacityUHD8K,
		},
		Source: SourceConfig{
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			SequenceFPS:  30,
			PageDuration: 3,
			DPI:          150,
		},
		Export: export.Options{
			FFmpegPath:   "ffmpeg",
			Encoder:      "auto",
			BenchmarkLog: "benchmark.log",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8765,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./vividcut.yaml",
		"./vividcut.yml",
		filepath.Join(os.Getenv("HOME"), ".vividcut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}

// EditorOptions maps the editor and source sections onto editor.Options.
func (c *Config) EditorOptions() editor.Options {
	return editor.Options{
		PixelsPerFrame: c.Editor.PixelsPerFrame,
		HistoryLimit:   c.Editor.HistoryLimit,
		AutoZoom:       c.Editor.AutoZoom,
		CursorScale:    c.Render.CursorScale,
		CutMargin:      c.Editor.CutMargin,
		FocusMaxScale:  c.Editor.FocusMaxScale,
		Source: source.Options{
			FFmpegPath:   c.Source.FFmpegPath,
			FFprobePath:  c.Source.FFprobePath,
			SequenceFPS:  c.Source.SequenceFPS,
			PageDuration: c.Source.PageDuration,
			DPI:          c.Source.DPI,
		},
	}
}

func (c *Config) TextCardOptions() textcard.Options {
	return textcard.Options{
		CapacityHD:    c.TextCard.CacheHD,
		CapacityUHD4K: c.TextCard.Cache4K,
		CapacityUHD8K: c.TextCard.Cache8K,
	}
}

// Pipeline builds the transform stages enabled in the render section.
func (c *Config) Pipeline() (*transform.Pipeline, error) {
	r := c.Render
	p := transform.NewPipeline()
	var stages []transform.Stage
	if r.AspectRatio != "" {
		stages = append(stages, &transform.AspectRatio{Ratio: r.AspectRatio, Screen: image.Pt(r.ScreenWidth, r.ScreenHeight)})
	}
	if r.Padding > 0 {
		stages = append(stages, &transform.Padding{Fraction: r.Padding})
	}
	if r.BorderRadius > 0 || r.ShadowBlur > 0 {
		stages = append(stages, &transform.BorderShadow{Radius: r.BorderRadius, Blur: r.ShadowBlur, Opacity: r.ShadowOpacity})
	}
	if r.Background.Kind != "" {
		stages = append(stages, &transform.Background{Kind: r.Background.Kind, Colors: r.Background.Colors, Angle: r.Background.Angle})
	}
	for _, s := range stages {
		if err := p.Set(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}
