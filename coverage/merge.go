package coverage

import "sort"

// Insert refines a sorted, disjoint segment list with one more range and
// returns the new list. The input slice is never modified.
//
// If a segment fully contains r, that segment is split into up to three
// pieces and r's count wins on the overlapped interval. Otherwise r must lie
// entirely outside every existing segment and is placed before the first
// segment starting at or after r's end. A range that partially overlaps an
// existing segment is rejected with a *MalformedRangeError.
//
// Zero-width ranges paint nothing and leave the list unchanged.
func Insert(segments []Segment, r Range) ([]Segment, error) {
	out, _, err := insert(segments, r)
	return out, err
}

// insert is Insert that also reports whether r became a new top-level
// segment rather than a refinement of an existing one.
func insert(segments []Segment, r Range) ([]Segment, bool, error) {
	if err := validRange(r); err != nil {
		return nil, false, err
	}
	if r.StartOffset == r.EndOffset {
		return clone(segments), false, nil
	}
	if len(segments) == 0 {
		return []Segment{segmentOf(r)}, true, nil
	}

	// Segments are sorted and disjoint: the only candidate container is the
	// last segment starting at or before r.
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].Start > r.StartOffset
	}) - 1

	if i >= 0 && segments[i].contains(r) {
		return split(segments, i, r), false, nil
	}

	// Sibling: the first segment at or after r's end marks the insertion
	// point, and nothing between the candidate and that point may overlap r.
	at := sort.Search(len(segments), func(j int) bool {
		return segments[j].Start >= r.EndOffset
	})
	for j := max(i, 0); j < at; j++ {
		if segments[j].overlaps(r) {
			return nil, false, &MalformedRangeError{
				Index:    -1,
				Range:    r,
				Conflict: segments[j],
				Reason:   "partial overlap without containment",
			}
		}
	}

	out := make([]Segment, 0, len(segments)+1)
	out = append(out, segments[:at]...)
	out = append(out, segmentOf(r))
	out = append(out, segments[at:]...)
	return out, true, nil
}

// split replaces segments[i] with the pieces produced by refining it with r.
func split(segments []Segment, i int, r Range) []Segment {
	c := segments[i]

	pieces := make([]Segment, 0, 3)
	if r.StartOffset > c.Start {
		pieces = append(pieces, Segment{Start: c.Start, End: r.StartOffset, Count: c.Count})
	}
	pieces = append(pieces, segmentOf(r))
	if r.EndOffset < c.End {
		pieces = append(pieces, Segment{Start: r.EndOffset, End: c.End, Count: c.Count})
	}

	out := make([]Segment, 0, len(segments)+len(pieces)-1)
	out = append(out, segments[:i]...)
	out = append(out, pieces...)
	out = append(out, segments[i+1:]...)
	return out
}

func validRange(r Range) error {
	var reason string
	switch {
	case r.StartOffset < 0:
		reason = "negative start offset"
	case r.EndOffset < r.StartOffset:
		reason = "end offset before start offset"
	case r.Count < 0:
		reason = "negative count"
	default:
		return nil
	}
	return &MalformedRangeError{Index: -1, Range: r, Reason: reason}
}

func clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}
