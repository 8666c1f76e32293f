package textcard

// Tier is a discrete output resolution class.
type Tier int

const (
	TierHD Tier = iota
	TierUHD4K
	TierUHD8K
)

func (t Tier) String() string {
	switch t {
	case TierUHD8K:
		return "8k"
	case TierUHD4K:
		return "4k"
	default:
		return "hd"
	}
}

// TierFor picks the tier from the larger output dimension.
func TierFor(w, h int) Tier {
	side := max(w, h)
	switch {
	case side >= 7680:
		return TierUHD8K
	case side >= 3840:
		return TierUHD4K
	default:
		return TierHD
	}
}

// Metrics are the layout values for one tier, in pixels.
type Metrics struct {
	FontSize    float64
	Thickness   int
	LineSpacing float64
	Padding     int
	Outline     int
	CaretGap    int
}

var tierMetrics = map[Tier]Metrics{
	TierHD:    {FontSize: 42, Thickness: 1, LineSpacing: 1.5, Padding: 50, CaretGap: 5},
	TierUHD4K: {FontSize: 84, Thickness: 2, LineSpacing: 1.5, Padding: 100, Outline: 2, CaretGap: 10},
	TierUHD8K: {FontSize: 168, Thickness: 3, LineSpacing: 1.5, Padding: 200, Outline: 4, CaretGap: 20},
}

// Metrics scales the tier font size by the user text size factor.
func (t Tier) Metrics(textSize float64) Metrics {
	m := tierMetrics[t]
	if textSize > 0 {
		m.FontSize *= textSize
	}
	return m
}
