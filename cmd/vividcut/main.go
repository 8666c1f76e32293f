package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/vividcut/internal/api"
	"github.com/ivlev/vividcut/internal/config"
	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/logging"
	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/project"
	"github.com/ivlev/vividcut/internal/system"
	"github.com/ivlev/vividcut/internal/textcard"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vividcut",
	Short:         "vividcut - screen recording editor",
	Long:          "Cuts, gaps, zooms and text cards over screen recordings, with undo, preview frames and ffmpeg export.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logging.Init(verbose || cfg.Verbose)

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vividcut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	exportCmd.Flags().StringP("output", "o", "", "output video (default: output/<name>_<timestamp>.mp4)")
	exportCmd.Flags().Int("quality", 0, "quality (0 - auto, x264: CRF, VideoToolbox: bitrate = Q*100k)")
	exportCmd.Flags().String("encoder", "", "video encoder (auto, libx264, h264_nvenc, h264_videotoolbox)")
	exportCmd.Flags().Bool("stats", false, "print a performance report and append it to the benchmark log")

	renderCmd.Flags().IntP("frame", "f", 0, "absolute frame to render")
	renderCmd.Flags().StringP("output", "o", "frame.png", "output PNG")

	cutsCmd.Flags().Int("margin", 0, "frames kept clear on both sides of a cut (0 - from config)")

	cardCmd.Flags().Int("start", -1, "first frame of the card")
	cardCmd.Flags().Int("end", -1, "last frame of the card (may extend past the video)")
	cardCmd.Flags().Int("cut", -1, "place the card in this detected cut instead of start/end")
	cardCmd.Flags().String("text", "", "card text")
	cardCmd.Flags().String("bg", "", "background colour")
	cardCmd.Flags().String("color", "", "text colour")
	cardCmd.Flags().Float64("size", 0, "text size multiplier")
	cardCmd.Flags().String("link", "", "URL shown as a QR code on the card")

	focusCmd.Flags().Int("start", 0, "first frame of the zoom")
	focusCmd.Flags().Int("end", 0, "last frame of the zoom")

	serveCmd.Flags().Int("port", 0, "listen port (0 - from config)")

	rootCmd.AddCommand(infoCmd, cutsCmd, cardCmd, focusCmd, renderCmd, exportCmd, serveCmd, projectCmd, configCmd)
	projectCmd.AddCommand(projectNewCmd)
	configCmd.AddCommand(configInitCmd)
}

// newEditor builds an editor from the configuration.
func newEditor(cfg *config.Config) (*editor.Editor, error) {
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return nil, fmt.Errorf("render pipeline: %w", err)
	}
	cards, err := textcard.New(cfg.TextCardOptions(), log.Logger)
	if err != nil {
		return nil, fmt.Errorf("text cards: %w", err)
	}
	e := editor.New(cfg.EditorOptions(), pipeline, cards, nil, log.Logger)
	if verbose || cfg.Verbose {
		logging.TraceEvents(e.Bus(), logging.WithComponent("events"))
	}
	return e, nil
}

// openInput loads a project file or a recording into e. An empty input
// picks the newest project, then the newest recording under input/.
func openInput(ctx context.Context, cfg *config.Config, e *editor.Editor, input string) (string, error) {
	if input == "" {
		if latest, err := system.FindLatestProject(cfg.Editor.ProjectDir); err == nil {
			input = latest
		} else if latest, err := system.FindLatestVideo("input"); err == nil {
			input = latest
		} else {
			return "", fmt.Errorf("no input given and nothing found in %s or input/", cfg.Editor.ProjectDir)
		}
		fmt.Printf("[*] Выбран файл: %s\n", input)
	}

	if strings.HasSuffix(input, project.Extension) {
		if _, err := project.Open(ctx, e, input); err != nil {
			return "", err
		}
		return input, nil
	}

	var meta *metadata.Metadata
	if path, ok := system.MetadataPathFor(input); ok {
		m, err := metadata.Load(path)
		if err != nil {
			fmt.Printf("[!] Метаданные пропущены: %v\n", err)
		} else {
			meta = m
			fmt.Printf("[*] Метаданные: %s\n", path)
		}
	}
	if err := e.Load(ctx, input, meta); err != nil {
		return "", err
	}
	return input, nil
}

func withEditor(cmd *cobra.Command, args []string, fn func(cfg *config.Config, e *editor.Editor, input string) error) error {
	cfg := config.FromContext(cmd.Context())
	e, err := newEditor(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	var input string
	if len(args) > 0 {
		input = args[0]
	}
	input, err = openInput(cmd.Context(), cfg, e, input)
	if err != nil {
		return err
	}
	return fn(cfg, e, input)
}

var infoCmd = &cobra.Command{
	Use:   "info [video|project]",
	Short: "Show source properties, clips and effects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, input string) error {
			p := e.Properties()
			w, h := e.OutputSize()
			fmt.Printf("[*] %s\n", input)
			fmt.Printf("    Источник: %dx%d, %.2f fps, %d кадров\n", p.Width, p.Height, p.FPS, p.FrameCount)
			fmt.Printf("    Вывод:    %dx%d\n", w, h)
			fmt.Printf("    Таймлайн: %d..%d, всего %d кадров (%.2fs)\n",
				e.StartFrame(), e.EndFrame(), e.TotalFrames(), float64(e.TotalFrames())/e.FPS())
			for i, s := range e.Segments() {
				kind := "clip"
				if s.Gap {
					kind = "gap"
				}
				fmt.Printf("    [%d] %-4s len=%d src=%d\n", i, kind, s.Length, s.SourceStart)
			}
			for _, z := range e.Zooms() {
				fmt.Printf("    zoom %d..%d x%.2f at (%.2f, %.2f) auto=%v\n", z.Start, z.End, z.Params.Scale, z.Params.X, z.Params.Y, z.Params.Auto)
			}
			for _, c := range e.Cards() {
				fmt.Printf("    card %d..%d %q\n", c.Start, c.End, c.Params.Text)
			}
			done, undone := e.History()
			fmt.Printf("    История: %d правок, %d для повтора\n", len(done), len(undone))
			return nil
		})
	},
}

var cutsCmd = &cobra.Command{
	Use:   "cuts [video|project]",
	Short: "List gaps between clips where a text card fits",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		margin, _ := cmd.Flags().GetInt("margin")
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, _ string) error {
			if margin <= 0 {
				margin = cfg.Editor.CutMargin
			}
			cuts := e.DetectCuts(margin)
			if len(cuts) == 0 {
				fmt.Println("[*] Разрезов нет")
				return nil
			}
			for i, c := range cuts {
				fmt.Printf("[%d] %d..%d (%d кадров)\n", i, c.Start, c.End, c.End-c.Start+1)
			}
			return nil
		})
	},
}

var cardCmd = &cobra.Command{
	Use:   "card [project]",
	Short: "Add a text card to a project and save it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt("start")
		end, _ := cmd.Flags().GetInt("end")
		cut, _ := cmd.Flags().GetInt("cut")
		text, _ := cmd.Flags().GetString("text")
		bg, _ := cmd.Flags().GetString("bg")
		fg, _ := cmd.Flags().GetString("color")
		size, _ := cmd.Flags().GetFloat64("size")
		link, _ := cmd.Flags().GetString("link")

		card := effects.CardParams{Text: text, BackgroundColor: bg, TextColor: fg, TextSize: size, Link: link}
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, input string) error {
			var ok bool
			switch {
			case cut >= 0:
				ok = e.AddTextCardAtCut(cut, card)
			case start >= 0 && end >= start:
				ok = e.AddTextCard(start, end, card)
			default:
				return fmt.Errorf("either --cut or --start/--end is required")
			}
			if !ok {
				return fmt.Errorf("card rejected")
			}

			path, err := saveBack(cfg, e, input)
			if err != nil {
				return err
			}
			fmt.Printf("[+++] Карточка добавлена, таймлайн %d кадров: %s\n", e.TotalFrames(), path)
			return nil
		})
	},
}

var focusCmd = &cobra.Command{
	Use:   "focus [project]",
	Short: "Add a zoom aimed at the content of a frame and save the project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetInt("start")
		end, _ := cmd.Flags().GetInt("end")
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, input string) error {
			if !e.FocusZoom(start, end) {
				return fmt.Errorf("no zoom placed at frame %d", start)
			}
			path, err := saveBack(cfg, e, input)
			if err != nil {
				return err
			}
			zooms := e.Zooms()
			for _, z := range zooms {
				if z.Start == start {
					fmt.Printf("[+++] Зум x%.2f в (%.2f, %.2f): %s\n", z.Params.Scale, z.Params.X, z.Params.Y, path)
				}
			}
			return nil
		})
	},
}

// saveBack writes e to the project it was opened from, or to a new project
// next to the others when input was a recording.
func saveBack(cfg *config.Config, e *editor.Editor, input string) (string, error) {
	path := input
	if !strings.HasSuffix(path, project.Extension) {
		path = project.GeneratePath(cfg.Editor.ProjectDir, input)
	}
	if _, err := project.Save(e, path); err != nil {
		return "", err
	}
	return path, nil
}

var renderCmd = &cobra.Command{
	Use:   "render [video|project]",
	Short: "Render one composed frame to PNG",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, _ := cmd.Flags().GetInt("frame")
		out, _ := cmd.Flags().GetString("output")
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, _ string) error {
			img, err := e.RenderFrame(frame)
			if err != nil {
				return err
			}
			defer e.Release(img)

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("[+++] Кадр %d: %s\n", frame, out)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [video|project]",
	Short: "Export the edited timeline to a video file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, input string) error {
			opts := cfg.Export
			opts.BuildVersion = version
			if cmd.Flags().Changed("quality") {
				opts.Quality, _ = cmd.Flags().GetInt("quality")
			}
			if cmd.Flags().Changed("encoder") {
				opts.Encoder, _ = cmd.Flags().GetString("encoder")
			}
			if cmd.Flags().Changed("stats") {
				opts.ShowStats, _ = cmd.Flags().GetBool("stats")
			}

			if out == "" {
				out = defaultOutput(input)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}

			report, err := e.Export(cmd.Context(), out, opts)
			if err != nil {
				return err
			}
			if report.Encoder != "libx264" {
				fmt.Printf("[*] Аппаратное ускорение: %s\n", report.Encoder)
			}
			fmt.Printf("[+++] Успех! Результат: %s\n", out)
			return nil
		})
	},
}

func defaultOutput(input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, project.Extension)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, " ", "_")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", base, time.Now().Format("2006-01-02_15-04-05")))
}

var serveCmd = &cobra.Command{
	Use:   "serve [video|project]",
	Short: "Run the HTTP automation API",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		e, err := newEditor(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) > 0 {
			if _, err := openInput(cmd.Context(), cfg, e, args[0]); err != nil {
				return err
			}
		}

		port := cfg.API.Port
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			port = p
		}
		opts := cfg.Export
		opts.BuildVersion = version

		srv := api.NewServer(api.ServerConfig{
			Host:       cfg.API.Host,
			Port:       port,
			Editor:     e,
			Export:     opts,
			ProjectDir: cfg.Editor.ProjectDir,
			Logger:     log.Logger,
			StartTime:  time.Now(),
			Version:    version,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		e.Pause()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project file commands",
}

var projectNewCmd = &cobra.Command{
	Use:   "new [video]",
	Short: "Create a project for a recording",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEditor(cmd, args, func(cfg *config.Config, e *editor.Editor, input string) error {
			if strings.HasSuffix(input, project.Extension) {
				return fmt.Errorf("%s is already a project", input)
			}
			path := project.GeneratePath(cfg.Editor.ProjectDir, input)
			p, err := project.Save(e, path)
			if err != nil {
				return err
			}
			fmt.Printf("[+++] Проект %s: %s (%d авто-зумов)\n", p.ID, path, len(e.Zooms()))
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the current configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "vividcut.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.FromContext(cmd.Context()).Save(path); err != nil {
			return err
		}
		fmt.Printf("[+++] Конфигурация: %s\n", path)
		return nil
	},
}
