package metadata

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the sidecar written by the recorder next to a capture.
// Both YAML and JSON encodings are accepted.
type Metadata struct {
	Recording   bool        `yaml:"recording" json:"recording"`
	MouseEvents MouseEvents `yaml:"mouse_events" json:"mouse_events"`
	Region      []int       `yaml:"region,omitempty" json:"region,omitempty"`
}

type MouseEvents struct {
	// Move is keyed by frame number. Keys stay strings so JSON sidecars
	// decode as well as YAML ones.
	Move  map[string]Move `yaml:"move" json:"move"`
	Click []Click         `yaml:"click" json:"click"`
}

// Move is a cursor sample. X and Y are normalized to the recorded region.
type Move struct {
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	State    string  `yaml:"state" json:"state"`
	AnimStep int     `yaml:"anim_step" json:"anim_step"`
}

type Click struct {
	Frame int     `yaml:"frame" json:"frame"`
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
}

func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &m, nil
}

// Moves returns normalized cursor samples keyed by frame. Malformed keys
// are skipped.
func (m *Metadata) Moves() map[int]Move {
	out := make(map[int]Move, len(m.MouseEvents.Move))
	for k, v := range m.MouseEvents.Move {
		f, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		v.X, v.Y = m.normalize(v.X, v.Y)
		out[f] = v
	}
	return out
}

// Clicks returns explicit clicks, or clicks inferred from pointer-like
// cursor states when none were recorded. The result is sorted by frame.
func (m *Metadata) Clicks() []Click {
	clicks := append([]Click(nil), m.MouseEvents.Click...)
	if len(clicks) == 0 {
		for f, mv := range m.Moves() {
			if isClickState(mv.State) {
				clicks = append(clicks, Click{Frame: f, X: mv.X, Y: mv.Y})
			}
		}
	}
	sort.Slice(clicks, func(i, j int) bool { return clicks[i].Frame < clicks[j].Frame })
	for i := range clicks {
		clicks[i].X, clicks[i].Y = m.normalize(clicks[i].X, clicks[i].Y)
	}
	return clicks
}

func isClickState(state string) bool {
	s := strings.ToLower(state)
	return strings.Contains(s, "hand") || strings.Contains(s, "pointer") ||
		strings.Contains(s, "click") || s == "1" || s == "2"
}

// normalize maps pixel coordinates into [0,1] using the region size.
// Values already inside [0,1] pass through.
func (m *Metadata) normalize(x, y float64) (float64, float64) {
	if len(m.Region) >= 4 && m.Region[2] > 0 && m.Region[3] > 0 && (x > 1 || y > 1) {
		x /= float64(m.Region[2])
		y /= float64(m.Region[3])
	}
	return clamp01(x), clamp01(y)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
