// Package coverage reduces V8 precise-coverage data to a disjoint partition
// of source offsets.
//
// The runtime reports, per function, a list of execution ranges where the
// first range spans the whole function body and every later range is either
// nested inside an earlier one or disjoint from it. Insert refines a sorted
// segment list with one more range; Aggregate folds a whole script through
// Insert. Both are pure and safe to call from concurrent goroutines on
// independent inputs.
//
// Offsets are the runtime's offsets (UTF-16 code units into the script
// source). Converting them to byte offsets is the annotator's job.
package coverage

import "fmt"

// Range is one execution-count range as reported by Profiler.takePreciseCoverage.
type Range struct {
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
	Count       int `json:"count"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)c%d", r.StartOffset, r.EndOffset, r.Count)
}

// FunctionCoverage holds the ranges reported for one function, outer range first.
type FunctionCoverage struct {
	FunctionName    string  `json:"functionName"`
	IsBlockCoverage bool    `json:"isBlockCoverage"`
	Ranges          []Range `json:"ranges"`
}

// ScriptCoverage is one script's entry in a coverage snapshot.
type ScriptCoverage struct {
	ScriptID  string             `json:"scriptId"`
	URL       string             `json:"url"`
	Functions []FunctionCoverage `json:"functions"`
}

// Segment is one element of a disjoint partition.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Count int `json:"count"`
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d,%d)c%d", s.Start, s.End, s.Count)
}

// Covered reports whether the segment was executed at least once.
func (s Segment) Covered() bool { return s.Count > 0 }

// Len is the number of offsets the segment spans.
func (s Segment) Len() int { return s.End - s.Start }

func (s Segment) contains(r Range) bool {
	return s.Start <= r.StartOffset && s.End >= r.EndOffset
}

func (s Segment) overlaps(r Range) bool {
	return s.Start < r.EndOffset && r.StartOffset < s.End
}

func segmentOf(r Range) Segment {
	return Segment{Start: r.StartOffset, End: r.EndOffset, Count: r.Count}
}
