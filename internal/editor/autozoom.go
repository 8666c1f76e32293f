package editor

import (
	"github.com/ivlev/vividcut/internal/effects"
	"github.com/ivlev/vividcut/internal/metadata"
)

// Director places zoom effects on recorded clicks.
type Director struct {
	FPS         float64
	TotalFrames int
	Scale       float64 // Zoom level for every generated effect
	MinGap      float64 // Minimum time between effects (seconds)
	Duration    float64 // Effect length (seconds)
	Lead        float64 // Time before the click the zoom starts (seconds)
	Ease        float64 // Ease-in and ease-out windows (seconds)
	MinDuration float64 // Shorter effects are dropped (seconds)
}

// NewDirector creates a Director with default settings
func NewDirector(fps float64, totalFrames int) *Director {
	return &Director{
		FPS:         fps,
		TotalFrames: totalFrames,
		Scale:       2.0,
		MinGap:      2.0,
		Duration:    4.0,
		Lead:        0.5,
		Ease:        0.5,
		MinDuration: 1.0,
	}
}

// Zooms turns clicks (sorted by frame) into non-overlapping zoom intervals.
// A click closer than MinGap to the end of the previous effect is skipped.
func (d *Director) Zooms(clicks []metadata.Click) []effects.Interval[effects.ZoomParams] {
	minGap := int(d.FPS * d.MinGap)
	duration := int(d.FPS * d.Duration)
	lead := int(d.FPS * d.Lead)
	ease := int(d.FPS * d.Ease)
	shortest := int(d.FPS * d.MinDuration)

	var out []effects.Interval[effects.ZoomParams]
	lastEnd := -minGap
	for _, c := range clicks {
		if c.Frame < lastEnd+minGap {
			continue
		}
		start := max(0, c.Frame-lead)
		// The last media frame is the furthest an effect may reach without
		// extending the timeline.
		end := min(d.TotalFrames-1, start+duration)
		if end-start < shortest {
			continue
		}
		out = append(out, effects.Interval[effects.ZoomParams]{
			Start: start,
			End:   end,
			Params: effects.ZoomParams{
				X:             c.X,
				Y:             c.Y,
				Scale:         d.Scale,
				EaseInFrames:  ease,
				EaseOutFrames: ease,
				Auto:          true,
			},
		})
		lastEnd = end
	}
	return out
}
