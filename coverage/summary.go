package coverage

// Summary counts executed offsets in a partition.
type Summary struct {
	Total    int     `json:"total"`
	Covered  int     `json:"covered"`
	Segments int     `json:"segments"`
	Percent  float64 `json:"percent"`
}

// Summarize returns offset totals for a partition. Percent is 0 for an
// empty partition.
func Summarize(segments []Segment) Summary {
	s := Summary{Segments: len(segments)}
	for _, seg := range segments {
		s.Total += seg.Len()
		if seg.Covered() {
			s.Covered += seg.Len()
		}
	}
	if s.Total > 0 {
		s.Percent = float64(s.Covered) * 100 / float64(s.Total)
	}
	return s
}
