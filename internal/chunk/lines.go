package chunk

import "math"

// Lines is the span of grid lines a chunk occupies. A grid line is a row of
// the address space that is a fixed number of bytes wide.
type Lines struct {
	Start uint64
	Count uint64
}

// NewLines computes the lines covered by [address, address+size) on a grid
// of width bytes per line. The result always contains at least one line.
func NewLines(address, size, width uint64) Lines {
	offset := address % width
	lead := width - offset

	count := uint64(1)
	if size >= lead {
		rest := size - lead
		count = rest/width + 1
		if rest%width != 0 {
			count++
		}
	}

	return Lines{
		Start: address / width,
		Count: count,
	}
}

// End returns the first line after the span, saturating at math.MaxUint64.
func (l Lines) End() uint64 {
	if l.Count > math.MaxUint64-l.Start {
		return math.MaxUint64
	}
	return l.Start + l.Count
}

// Contains reports whether line is part of the span.
func (l Lines) Contains(line uint64) bool {
	return line >= l.Start && line < l.End()
}
