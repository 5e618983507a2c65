package coverage

import (
	"cmp"
	"errors"
	"slices"
)

// Aggregate folds every function's ranges of one script through Insert, in
// the order the runtime reported them, and returns the script's disjoint
// partition. An empty script yields an empty partition.
//
// A malformed range stops the aggregation of this script with a
// *MalformedRangeError annotated with the script, function and range index.
func Aggregate(script ScriptCoverage) ([]Segment, error) {
	var (
		segments []Segment
		roots    []Segment
	)
	for _, fn := range script.Functions {
		for idx, r := range fn.Ranges {
			next, root, err := insert(segments, r)
			if err != nil {
				var mre *MalformedRangeError
				if errors.As(err, &mre) {
					mre.ScriptID = script.ScriptID
					mre.URL = script.URL
					mre.Function = fn.FunctionName
					mre.Index = idx
				}
				return nil, err
			}
			if root {
				roots = append(roots, segmentOf(r))
			}
			segments = next
		}
	}

	if err := checkTiling(segments, roots); err != nil {
		return nil, err
	}
	return segments, nil
}

// CheckPartition verifies that segments are sorted by start, pairwise
// non-overlapping and non-empty. Gaps between segments are allowed.
func CheckPartition(segments []Segment) error {
	for i, s := range segments {
		if s.End <= s.Start {
			return &InvariantError{Index: i, Segment: s, Reason: "empty segment"}
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if s.Start < prev.Start {
			return &InvariantError{Index: i, Segment: s, Reason: "not sorted by start"}
		}
		if s.Start < prev.End {
			return &InvariantError{Index: i, Segment: s, Reason: "overlaps previous segment"}
		}
	}
	return nil
}

// checkTiling is CheckPartition plus contiguity: every hole between two
// segments must coincide with a hole between two top-level ranges.
func checkTiling(segments, roots []Segment) error {
	if err := CheckPartition(segments); err != nil {
		return err
	}
	if err := CheckPartition(sortedRoots(roots)); err != nil {
		return err
	}

	ends := make(map[int]bool, len(roots))
	for _, r := range roots {
		ends[r.End] = true
	}
	starts := make(map[int]bool, len(roots))
	for _, r := range roots {
		starts[r.Start] = true
	}

	for i := 1; i < len(segments); i++ {
		prev, s := segments[i-1], segments[i]
		if s.Start == prev.End {
			continue
		}
		if !ends[prev.End] || !starts[s.Start] {
			return &InvariantError{Index: i, Segment: s, Reason: "gap inside a top-level range"}
		}
	}
	if len(segments) > 0 && len(roots) > 0 {
		first, last := segments[0], segments[len(segments)-1]
		if !starts[first.Start] || !ends[last.End] {
			return &InvariantError{Index: 0, Segment: first, Reason: "partition does not span its top-level ranges"}
		}
	}
	return nil
}

func sortedRoots(roots []Segment) []Segment {
	out := clone(roots)
	slices.SortFunc(out, func(a, b Segment) int { return cmp.Compare(a.Start, b.Start) })
	return out
}

// Extent returns the offsets spanned by a partition, from the first start
// to the last end. ok is false for an empty partition.
func Extent(segments []Segment) (start, end int, ok bool) {
	if len(segments) == 0 {
		return 0, 0, false
	}
	return segments[0].Start, segments[len(segments)-1].End, true
}
