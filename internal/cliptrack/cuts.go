package cliptrack

// Cut is a hole between two adjacent clips that can host a text card.
type Cut struct {
	Position int `yaml:"position" json:"position"`
	Start    int `yaml:"start_frame" json:"start_frame"`
	End      int `yaml:"end_frame" json:"end_frame"`
	Duration int `yaml:"duration" json:"duration"`
}

// DetectCuts finds gaps between consecutive ranges, shrunk by margin frames
// on both sides. Holes that vanish after the margin are skipped.
func DetectCuts(ranges []Range, margin int) []Cut {
	if len(ranges) <= 1 {
		return nil
	}
	var cuts []Cut
	for i := 0; i+1 < len(ranges); i++ {
		cur, next := ranges[i], ranges[i+1]
		if next.Start <= cur.End {
			continue
		}
		start := cur.End + margin
		end := next.Start - margin
		if end <= start {
			continue
		}
		cuts = append(cuts, Cut{
			Position: i,
			Start:    start,
			End:      end,
			Duration: end - start,
		})
	}
	return cuts
}
