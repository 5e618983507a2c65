package coverage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertAll(t *testing.T, ranges ...Range) []Segment {
	t.Helper()
	var segs []Segment
	for _, r := range ranges {
		var err error
		segs, err = Insert(segs, r)
		require.NoError(t, err, "insert %s", r)
	}
	return segs
}

func TestInsert_Empty(t *testing.T) {
	got, err := Insert(nil, Range{StartOffset: 3, EndOffset: 9, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, []Segment{{3, 9, 1}}, got)
}

func TestInsert_NestedSplitsContainer(t *testing.T) {
	got := insertAll(t,
		Range{0, 100, 5},
		Range{10, 20, 0},
	)
	assert.Equal(t, []Segment{{0, 10, 5}, {10, 20, 0}, {20, 100, 5}}, got)
}

func TestInsert_SiblingsEitherOrder(t *testing.T) {
	want := []Segment{{0, 10, 5}, {10, 20, 0}, {20, 30, 5}, {30, 40, 2}, {40, 100, 5}}

	a := insertAll(t, Range{0, 100, 5}, Range{10, 20, 0}, Range{30, 40, 2})
	b := insertAll(t, Range{0, 100, 5}, Range{30, 40, 2}, Range{10, 20, 0})

	assert.Equal(t, want, a)
	assert.Equal(t, want, b)
}

func TestInsert_TouchingStart(t *testing.T) {
	got := insertAll(t, Range{0, 100, 5}, Range{0, 30, 0})
	assert.Equal(t, []Segment{{0, 30, 0}, {30, 100, 5}}, got)
}

func TestInsert_TouchingEnd(t *testing.T) {
	got := insertAll(t, Range{0, 100, 5}, Range{70, 100, 0})
	assert.Equal(t, []Segment{{0, 70, 5}, {70, 100, 0}}, got)
}

func TestInsert_ExactMatchReplacesCount(t *testing.T) {
	got := insertAll(t, Range{0, 100, 5}, Range{0, 100, 1})
	assert.Equal(t, []Segment{{0, 100, 1}}, got)
}

func TestInsert_Idempotent(t *testing.T) {
	once := insertAll(t, Range{0, 100, 5}, Range{10, 20, 0})
	twice := insertAll(t, Range{0, 100, 5}, Range{10, 20, 0}, Range{10, 20, 0})
	assert.Equal(t, once, twice)
	for _, s := range twice {
		assert.NotEqual(t, s.Start, s.End, "zero-width segment %s", s)
	}
}

func TestInsert_RefinementKeepsContainerCountOutside(t *testing.T) {
	got := insertAll(t, Range{0, 50, 7}, Range{10, 40, 3}, Range{20, 30, 0})
	assert.Equal(t, []Segment{{0, 10, 7}, {10, 20, 3}, {20, 30, 0}, {30, 40, 3}, {40, 50, 7}}, got)
}

func TestInsert_SiblingPlacement(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		want   []Segment
	}{
		{
			name:   "before all",
			ranges: []Range{{50, 60, 1}, {0, 10, 2}},
			want:   []Segment{{0, 10, 2}, {50, 60, 1}},
		},
		{
			name:   "after all",
			ranges: []Range{{0, 10, 2}, {50, 60, 1}},
			want:   []Segment{{0, 10, 2}, {50, 60, 1}},
		},
		{
			name:   "between",
			ranges: []Range{{0, 10, 2}, {50, 60, 1}, {20, 30, 0}},
			want:   []Segment{{0, 10, 2}, {20, 30, 0}, {50, 60, 1}},
		},
		{
			name:   "fills gap exactly",
			ranges: []Range{{0, 10, 2}, {20, 30, 1}, {10, 20, 0}},
			want:   []Segment{{0, 10, 2}, {10, 20, 0}, {20, 30, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, insertAll(t, tt.ranges...))
		})
	}
}

func TestInsert_DoesNotMutateInput(t *testing.T) {
	in := []Segment{{0, 100, 5}}
	_, err := Insert(in, Range{10, 20, 0})
	require.NoError(t, err)
	assert.Equal(t, []Segment{{0, 100, 5}}, in)
}

func TestInsert_ZeroWidthIgnored(t *testing.T) {
	in := []Segment{{0, 100, 5}}
	got, err := Insert(in, Range{10, 10, 0})
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestInsert_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		r        Range
		conflict Segment
	}{
		{name: "negative start", r: Range{-1, 5, 0}},
		{name: "inverted", r: Range{9, 5, 0}},
		{name: "negative count", r: Range{0, 5, -2}},
		{
			name:     "partial overlap on the right",
			segments: []Segment{{0, 100, 5}},
			r:        Range{50, 150, 1},
			conflict: Segment{0, 100, 5},
		},
		{
			name:     "partial overlap on the left",
			segments: []Segment{{50, 100, 5}},
			r:        Range{10, 60, 1},
			conflict: Segment{50, 100, 5},
		},
		{
			name:     "straddles two segments",
			segments: []Segment{{0, 10, 1}, {20, 30, 1}},
			r:        Range{5, 25, 0},
			conflict: Segment{0, 10, 1},
		},
		{
			name:     "covers several segments",
			segments: []Segment{{10, 20, 1}, {20, 30, 0}},
			r:        Range{0, 40, 3},
			conflict: Segment{10, 20, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Insert(tt.segments, tt.r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRange))

			var mre *MalformedRangeError
			require.True(t, errors.As(err, &mre))
			assert.Equal(t, tt.r, mre.Range)
			assert.Equal(t, tt.conflict, mre.Conflict)
		})
	}
}
