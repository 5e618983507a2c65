// Package annotate inserts coverage style markers into script source text.
//
// Annotate walks the source once, cutting it at segment boundaries, so no
// offset ever has to be shifted to account for markers inserted earlier.
// The result carries the marked-up text, one StyleToken per marker and the
// styled slices renderers work from.
package annotate

import (
	"strings"

	"github.com/hazyhaar/covwatch/coverage"
)

// Marker is inserted into Annotated.Text at every style token. A literal
// '%' in the source is doubled so Strip can undo the markup exactly.
const Marker = "%c"

// Style selects how the text following a marker is shown.
type Style int

const (
	StyleNeutral    Style = iota // outside any segment, or reset after one
	StyleCovered                 // count > 0
	StyleNotCovered              // count == 0
)

func (s Style) String() string {
	switch s {
	case StyleCovered:
		return "covered"
	case StyleNotCovered:
		return "not-covered"
	default:
		return "neutral"
	}
}

func (s Style) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Style) UnmarshalText(b []byte) error {
	switch string(b) {
	case "covered":
		*s = StyleCovered
	case "not-covered":
		*s = StyleNotCovered
	default:
		*s = StyleNeutral
	}
	return nil
}

// StyleToken is one inserted marker. Offset is the byte offset in the
// original source the marker sits in front of.
type StyleToken struct {
	Offset int   `json:"offset"`
	Style  Style `json:"style"`
}

// Slice is a run of source text shown with one style.
type Slice struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
	Count int    `json:"count,omitempty"`
}

// Annotated is the output handed to rendering sinks.
type Annotated struct {
	Text   string       `json:"text"`
	Tokens []StyleToken `json:"tokens"`
	Slices []Slice      `json:"slices"`
}

// Annotate marks every segment of a sorted partition in source. Segment
// offsets are runtime offsets (UTF-16 code units); offsets past the end of
// the source are clamped and segments that end up empty are skipped.
//
// Each segment contributes a style token at its start and a neutral token at
// its end, so two adjacent segments share exactly one reset/start pair.
func Annotate(source string, segments []coverage.Segment) Annotated {
	idx := newOffsetIndex(source)

	a := Annotated{Tokens: make([]StyleToken, 0, 2*len(segments))}
	pos := 0
	for _, seg := range segments {
		start, end := idx.byteOffset(seg.Start), idx.byteOffset(seg.End)
		if start < pos {
			start = pos
		}
		if end <= start {
			continue
		}
		if start > pos {
			a.Slices = append(a.Slices, Slice{Text: source[pos:start], Style: StyleNeutral})
		}

		style := StyleNotCovered
		if seg.Covered() {
			style = StyleCovered
		}
		a.Tokens = append(a.Tokens,
			StyleToken{Offset: start, Style: style},
			StyleToken{Offset: end, Style: StyleNeutral},
		)
		a.Slices = append(a.Slices, Slice{Text: source[start:end], Style: style, Count: seg.Count})
		pos = end
	}
	if pos < len(source) {
		a.Slices = append(a.Slices, Slice{Text: source[pos:], Style: StyleNeutral})
	}

	a.Text = markup(source, a.Tokens)
	return a
}

func markup(source string, tokens []StyleToken) string {
	var b strings.Builder
	b.Grow(len(source) + len(tokens)*len(Marker))
	last := 0
	for _, tok := range tokens {
		writeEscaped(&b, source[last:tok.Offset])
		b.WriteString(Marker)
		last = tok.Offset
	}
	writeEscaped(&b, source[last:])
	return b.String()
}

func writeEscaped(b *strings.Builder, s string) {
	for {
		i := strings.IndexByte(s, '%')
		if i < 0 {
			b.WriteString(s)
			return
		}
		b.WriteString(s[:i+1])
		b.WriteByte('%')
		s = s[i+1:]
	}
}

// Strip removes every marker from annotated text and undoes '%' doubling,
// giving back the original source.
func Strip(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '%' && i+1 < len(text) {
			switch text[i+1] {
			case 'c':
				i++
				continue
			case '%':
				b.WriteByte('%')
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
