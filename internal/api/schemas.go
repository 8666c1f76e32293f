package api

import (
	"github.com/ivlev/vividcut/internal/cliptrack"
	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/export"
	"github.com/ivlev/vividcut/internal/source"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StateResponse struct {
	Loaded       bool                                   `json:"loaded"`
	Path         string                                 `json:"path,omitempty"`
	Properties   source.Properties                      `json:"properties"`
	OutputWidth  int                                    `json:"output_width"`
	OutputHeight int                                    `json:"output_height"`
	StartFrame   int                                    `json:"start_frame"`
	EndFrame     int                                    `json:"end_frame"`
	TotalFrames  int                                    `json:"total_frames"`
	CurrentFrame int                                    `json:"current_frame"`
	Playing      bool                                   `json:"playing"`
	CanUndo      bool                                   `json:"can_undo"`
	CanRedo      bool                                   `json:"can_redo"`
	Segments     []cliptrack.Segment                    `json:"segments"`
	ClipRanges   []cliptrack.Range                      `json:"clip_ranges"`
	Zooms        []effects.Interval[effects.ZoomParams] `json:"zooms"`
	Cards        []effects.Interval[effects.CardParams] `json:"cards"`
}

type LoadRequest struct {
	Path         string `json:"path"`
	MetadataPath string `json:"metadata_path,omitempty"`
}

type JumpRequest struct {
	Frame int `json:"frame"`
}

type CutPointRequest struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
}

type CutsResponse struct {
	Margin int             `json:"margin"`
	Cuts   []cliptrack.Cut `json:"cuts"`
}

type ExportRequest struct {
	Output string `json:"output"`
	export.Options
}

type ProjectRequest struct {
	Path string `json:"path"`
}

type ProjectResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type HistoryResponse struct {
	Done   []editor.Command `json:"done"`
	Undone []editor.Command `json:"undone"`
}

type FocusRequest struct {
	StartFrame int `json:"start_frame"`
	EndFrame   int `json:"end_frame"`
}
