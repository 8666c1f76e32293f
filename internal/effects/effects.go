package effects

// ZoomParams describes a zoom effect. X and Y are the normalized crop
// centre, Scale the target magnification.
type ZoomParams struct {
	X             float64 `yaml:"x" json:"x"`
	Y             float64 `yaml:"y" json:"y"`
	Scale         float64 `yaml:"scale" json:"scale"`
	EaseInFrames  int     `yaml:"ease_in_frames" json:"ease_in_frames"`
	EaseOutFrames int     `yaml:"ease_out_frames" json:"ease_out_frames"`
	Auto          bool    `yaml:"auto,omitempty" json:"auto,omitempty"`
}

const (
	DefaultEaseIn  = 5
	DefaultEaseOut = 4
)

func DefaultZoom() ZoomParams {
	return ZoomParams{X: 0.5, Y: 0.5, Scale: 1.0, EaseInFrames: DefaultEaseIn, EaseOutFrames: DefaultEaseOut}
}

// ScaleAt returns the magnification pos frames into an effect lasting
// duration frames: a linear ramp from 1 to Scale over EaseInFrames, a hold,
// then a ramp back to 1 over the last EaseOutFrames. Short effects shrink
// both ramps proportionally so they never overlap.
func (z ZoomParams) ScaleAt(pos, duration int) float64 {
	scale := z.Scale
	easeIn, easeOut := z.EaseInFrames, z.EaseOutFrames

	if duration < easeIn+easeOut+1 {
		ratio := float64(duration) / float64(easeIn+easeOut+1)
		easeIn = max(1, int(float64(easeIn)*ratio))
		easeOut = max(1, int(float64(easeOut)*ratio))
	}

	switch {
	case easeIn > 0 && pos < easeIn:
		return 1 + (scale-1)*float64(pos)/float64(easeIn)
	case easeOut > 0 && pos >= duration-easeOut:
		t := float64(pos-(duration-easeOut)) / float64(easeOut)
		return scale - (scale-1)*t
	default:
		return scale
	}
}

// CardParams describes a text card shown in place of video.
type CardParams struct {
	BackgroundColor string  `yaml:"background_color" json:"background_color"`
	TextColor       string  `yaml:"text_color" json:"text_color"`
	HorizontalAlign string  `yaml:"horizontal_align" json:"horizontal_align"`
	VerticalAlign   string  `yaml:"vertical_align" json:"vertical_align"`
	Text            string  `yaml:"text" json:"text"`
	TextSize        float64 `yaml:"text_size" json:"text_size"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
	// Link is shown as a QR code in the corner of the card.
	Link string `yaml:"link,omitempty" json:"link,omitempty"`
}

func DefaultCard() CardParams {
	return CardParams{
		BackgroundColor: "black",
		TextColor:       "white",
		HorizontalAlign: "center",
		VerticalAlign:   "middle",
		TextSize:        1.0,
		DurationSeconds: 3,
	}
}

// WithDefaults fills zero fields from DefaultCard.
func (c CardParams) WithDefaults() CardParams {
	d := DefaultCard()
	if c.BackgroundColor == "" {
		c.BackgroundColor = d.BackgroundColor
	}
	if c.TextColor == "" {
		c.TextColor = d.TextColor
	}
	if c.HorizontalAlign == "" {
		c.HorizontalAlign = d.HorizontalAlign
	}
	if c.VerticalAlign == "" {
		c.VerticalAlign = d.VerticalAlign
	}
	if c.TextSize <= 0 {
		c.TextSize = d.TextSize
	}
	if c.DurationSeconds <= 0 {
		c.DurationSeconds = d.DurationSeconds
	}
	return c
}

// Timeline groups the two interval sets the compositor consults.
type Timeline struct {
	Zooms *Set[ZoomParams]
	Cards *Set[CardParams]
}

func NewTimeline() *Timeline {
	return &Timeline{Zooms: NewSet[ZoomParams](), Cards: NewSet[CardParams]()}
}

// MaxEnd is the furthest end frame over both sets.
func (t *Timeline) MaxEnd() (int, bool) {
	z, zok := t.Zooms.MaxEnd()
	c, cok := t.Cards.MaxEnd()
	switch {
	case zok && cok:
		return max(z, c), true
	case zok:
		return z, true
	case cok:
		return c, true
	}
	return 0, false
}

func (t *Timeline) Clear() {
	t.Zooms.Clear()
	t.Cards.Clear()
}
