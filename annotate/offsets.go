package annotate

import "unicode/utf16"

// offsetIndex maps runtime offsets (UTF-16 code units) to byte offsets in a
// Go string. Pure ASCII sources map one to one and skip the table.
type offsetIndex struct {
	size  int
	units []int // units[u] = byte offset of code unit u; nil for ASCII
}

func newOffsetIndex(src string) offsetIndex {
	idx := offsetIndex{size: len(src)}
	ascii := true
	for i := 0; i < len(src); i++ {
		if src[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return idx
	}

	idx.units = make([]int, 0, len(src)+1)
	for i, r := range src {
		// The low half of a surrogate pair rounds down to the rune start.
		for range utf16.RuneLen(r) {
			idx.units = append(idx.units, i)
		}
	}
	idx.units = append(idx.units, len(src))
	return idx
}

func (x offsetIndex) byteOffset(unit int) int {
	if unit <= 0 {
		return 0
	}
	if x.units == nil {
		return min(unit, x.size)
	}
	if unit >= len(x.units) {
		return x.size
	}
	return x.units[unit]
}
