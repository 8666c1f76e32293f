package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/events"
	"github.com/ivlev/vividcut/internal/metadata"
	"github.com/ivlev/vividcut/internal/project"
	"github.com/ivlev/vividcut/internal/source"
	"github.com/ivlev/vividcut/internal/system"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/state", stateHandler(cfg))
	r.Get("/events", eventsHandler(cfg))
	r.Post("/load", loadHandler(cfg))

	r.Route("/playback", func(r chi.Router) {
		r.Post("/play", playbackHandler(cfg, (*editor.Editor).Play))
		r.Post("/pause", playbackHandler(cfg, (*editor.Editor).Pause))
		r.Post("/toggle", playbackHandler(cfg, (*editor.Editor).TogglePlay))
		r.Post("/next", playbackHandler(cfg, (*editor.Editor).NextFrame))
		r.Post("/prev", playbackHandler(cfg, (*editor.Editor).PrevFrame))
		r.Post("/jump", jumpHandler(cfg))
	})

	r.Get("/frames/{n}.png", frameHandler(cfg))

	r.Post("/commands", commandHandler(cfg))
	r.Post("/cut-point", cutPointHandler(cfg))
	r.Post("/undo", historyStepHandler(cfg, (*editor.Editor).Undo, "nothing to undo"))
	r.Post("/redo", historyStepHandler(cfg, (*editor.Editor).Redo, "nothing to redo"))
	r.Get("/history", historyHandler(cfg))

	r.Post("/zooms/focus", focusHandler(cfg))

	r.Get("/cuts", cutsHandler(cfg))
	r.Post("/cuts/{position}/card", cardAtCutHandler(cfg))

	r.Post("/export", exportHandler(cfg))
	r.Post("/project/save", saveProjectHandler(cfg))
	r.Post("/project/open", openProjectHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func stateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, snapshotState(cfg.Editor))
	}
}

func snapshotState(e *editor.Editor) StateResponse {
	props := e.Properties()
	resp := StateResponse{
		Loaded:       e.Path() != "",
		Path:         e.Path(),
		Properties:   props,
		StartFrame:   e.StartFrame(),
		EndFrame:     e.EndFrame(),
		TotalFrames:  e.TotalFrames(),
		CurrentFrame: e.CurrentFrame(),
		Playing:      e.Playing(),
		CanUndo:      e.CanUndo(),
		CanRedo:      e.CanRedo(),
		Segments:     e.Segments(),
		ClipRanges:   e.ClipRanges(),
		Zooms:        e.Zooms(),
		Cards:        e.Cards(),
	}
	if resp.Loaded {
		resp.OutputWidth, resp.OutputHeight = e.OutputSize()
	}
	return resp
}

// eventsHandler streams editor events as server-sent events until the
// client goes away. Frame events are dropped when the client lags.
func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming unsupported", "INTERNAL_ERROR")
			return
		}

		ch := make(chan events.Event, 64)
		unsubscribe := cfg.Editor.Subscribe(func(ev events.Event) {
			select {
			case ch <- ev:
			default:
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-ch:
				data, err := json.Marshal(ev.Data)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
				flusher.Flush()
			}
		}
	}
}

func loadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		metaPath := req.MetadataPath
		if metaPath == "" {
			metaPath, _ = system.MetadataPathFor(req.Path)
		}
		var meta *metadata.Metadata
		if metaPath != "" {
			m, err := metadata.Load(metaPath)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_METADATA")
				return
			}
			meta = m
		}

		if err := cfg.Editor.Load(r.Context(), req.Path, meta); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "LOAD_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, snapshotState(cfg.Editor))
	}
}

func requireLoaded(cfg ServerConfig, w http.ResponseWriter) bool {
	if cfg.Editor.Path() == "" {
		WriteError(w, http.StatusConflict, source.ErrNotLoaded.Error(), "NOT_LOADED")
		return false
	}
	return true
}

func playbackHandler(cfg ServerConfig, fn func(*editor.Editor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireLoaded(cfg, w) {
			return
		}
		fn(cfg.Editor)
		WriteJSON(w, http.StatusOK, map[string]any{
			"playing":       cfg.Editor.Playing(),
			"current_frame": cfg.Editor.CurrentFrame(),
		})
	}
}

func jumpHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireLoaded(cfg, w) {
			return
		}
		var req JumpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Editor.JumpToFrame(req.Frame)
		WriteJSON(w, http.StatusOK, map[string]any{
			"playing":       cfg.Editor.Playing(),
			"current_frame": cfg.Editor.CurrentFrame(),
		})
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "frame must be an integer", "BAD_REQUEST")
			return
		}
		img, err := cfg.Editor.RenderFrame(n)
		if err != nil {
			if errors.Is(err, source.ErrNotLoaded) {
				WriteError(w, http.StatusConflict, err.Error(), "NOT_LOADED")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "RENDER_FAILED")
			return
		}
		defer cfg.Editor.Release(img)

		w.Header().Set("Content-Type", "image/png")
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(w, img); err != nil {
			cfg.Logger.Warn().Err(err).Int("frame", n).Msg("frame write failed")
		}
	}
}

func commandHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd editor.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cmd.Card != nil && cmd.Card.To != nil {
			cmd.Card.To.Params = cmd.Card.To.Params.WithDefaults()
		}
		applied, err := cfg.Editor.Execute(cmd)
		switch {
		case errors.Is(err, source.ErrNotLoaded):
			WriteError(w, http.StatusConflict, err.Error(), "NOT_LOADED")
		case err != nil:
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "REJECTED")
		default:
			WriteJSON(w, http.StatusOK, applied)
		}
	}
}

func cutPointHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutPointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Editor.RecordCutPoint(req.Index, req.X)
		WriteJSON(w, http.StatusOK, req)
	}
}

func historyStepHandler(cfg ServerConfig, fn func(*editor.Editor) bool, empty string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !fn(cfg.Editor) {
			WriteError(w, http.StatusConflict, empty, "EMPTY_HISTORY")
			return
		}
		WriteJSON(w, http.StatusOK, snapshotState(cfg.Editor))
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done, undone := cfg.Editor.History()
		WriteJSON(w, http.StatusOK, HistoryResponse{Done: done, Undone: undone})
	}
}

func focusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FocusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if !requireLoaded(cfg, w) {
			return
		}
		if !cfg.Editor.FocusZoom(req.StartFrame, req.EndFrame) {
			WriteError(w, http.StatusUnprocessableEntity, "no zoom placed", "REJECTED")
			return
		}
		WriteJSON(w, http.StatusCreated, cfg.Editor.Zooms())
	}
}

func cutsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		margin := editor.DefaultCutMargin
		if v := r.URL.Query().Get("margin"); v != "" {
			m, err := strconv.Atoi(v)
			if err != nil || m < 0 {
				WriteError(w, http.StatusBadRequest, "margin must be a non-negative integer", "BAD_REQUEST")
				return
			}
			margin = m
		}
		WriteJSON(w, http.StatusOK, CutsResponse{Margin: margin, Cuts: cfg.Editor.DetectCuts(margin)})
	}
}

func cardAtCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := strconv.Atoi(chi.URLParam(r, "position"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "position must be an integer", "BAD_REQUEST")
			return
		}
		var card effects.CardParams
		if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if !cfg.Editor.AddTextCardAtCut(pos, card) {
			WriteError(w, http.StatusUnprocessableEntity, "no card added at that cut", "REJECTED")
			return
		}
		WriteJSON(w, http.StatusCreated, cfg.Editor.Cards())
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := ExportRequest{Options: cfg.Export}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Output == "" {
			WriteError(w, http.StatusBadRequest, "output is required", "BAD_REQUEST")
			return
		}
		if !requireLoaded(cfg, w) {
			return
		}
		report, err := cfg.Editor.Export(r.Context(), req.Output, req.Options)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "EXPORT_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProjectRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}
		if !requireLoaded(cfg, w) {
			return
		}
		if req.Path == "" {
			req.Path = project.GeneratePath(cfg.ProjectDir, cfg.Editor.Path())
		}
		p, err := project.Save(cfg.Editor, req.Path)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "SAVE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, ProjectResponse{ID: p.ID, Path: req.Path})
	}
}

func openProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			latest, err := system.FindLatestProject(cfg.ProjectDir)
			if err != nil {
				WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
				return
			}
			req.Path = latest
		}
		p, err := project.Open(r.Context(), cfg.Editor, req.Path)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "OPEN_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, ProjectResponse{ID: p.ID, Path: req.Path})
	}
}
