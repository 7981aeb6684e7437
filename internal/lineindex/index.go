// Package lineindex maps grid lines to the chunk addresses that occupy them.
//
// Lines below the capacity given to New live in a dense bucket slice. Lines
// at or beyond it are kept in a sparse overflow map, so any address can be
// indexed without sizing the dense part for the whole address space.
//
// Spans longer than MaxSpan lines are not spread over buckets. They are kept
// whole in a short list that every query also scans, so a single huge
// allocation costs one entry instead of one per line.
package lineindex

import "github.com/mrzor/alloc-tracer/internal/chunk"

const (
	// MaxLines bounds the dense part of an index.
	MaxLines = 1 << 20
	// MaxSpan is the longest span stored line by line.
	MaxSpan = 1 << 12
)

type wideEntry struct {
	address uint64
	span    chunk.Lines
}

// Index is a line -> addresses multimap. It is not safe for concurrent use.
type Index struct {
	buckets  [][]uint64
	overflow map[uint64][]uint64
	wide     []wideEntry
	entries  int
}

// New creates an index with dense buckets for lines [0, maxLines).
// maxLines is clamped to MaxLines.
func New(maxLines uint64) *Index {
	return &Index{
		buckets:  make([][]uint64, min(maxLines, MaxLines)),
		overflow: make(map[uint64][]uint64),
	}
}

// Insert records address on every line of span.
func (x *Index) Insert(address uint64, span chunk.Lines) {
	if span.Count > MaxSpan {
		x.wide = append(x.wide, wideEntry{address: address, span: span})
		x.entries++
		return
	}

	for line := span.Start; line < span.End(); line++ {
		if line < uint64(len(x.buckets)) {
			x.buckets[line] = append(x.buckets[line], address)
		} else {
			x.overflow[line] = append(x.overflow[line], address)
		}
		x.entries++
	}
}

// Remove deletes every occurrence of address from the lines of span.
// Bucket order is not preserved.
func (x *Index) Remove(address uint64, span chunk.Lines) {
	if span.Count > MaxSpan {
		x.removeWide(address)
		return
	}

	for line := span.Start; line < span.End(); line++ {
		if line < uint64(len(x.buckets)) {
			x.buckets[line] = x.removeFrom(x.buckets[line], address)
			continue
		}
		bucket := x.removeFrom(x.overflow[line], address)
		if len(bucket) == 0 {
			delete(x.overflow, line)
		} else {
			x.overflow[line] = bucket
		}
	}
}

func (x *Index) removeFrom(bucket []uint64, address uint64) []uint64 {
	for i := 0; i < len(bucket); {
		if bucket[i] != address {
			i++
			continue
		}
		last := len(bucket) - 1
		bucket[i] = bucket[last]
		bucket = bucket[:last]
		x.entries--
	}
	return bucket
}

func (x *Index) removeWide(address uint64) {
	kept := x.wide[:0]
	for _, w := range x.wide {
		if w.address == address {
			x.entries--
			continue
		}
		kept = append(kept, w)
	}
	x.wide = kept
}

// Any calls fn for each address recorded on a line of span and stops at the
// first call that returns true. Addresses of long spans may be visited more
// than once.
func (x *Index) Any(span chunk.Lines, fn func(address uint64) bool) bool {
	if span.Count > MaxSpan {
		if x.anyInRange(span, fn) {
			return true
		}
	} else {
		for line := span.Start; line < span.End(); line++ {
			for _, address := range x.Bucket(line) {
				if fn(address) {
					return true
				}
			}
		}
	}

	for _, w := range x.wide {
		if intersects(w.span, span) && fn(w.address) {
			return true
		}
	}
	return false
}

// anyInRange visits the populated buckets inside a span too long to walk
// line by line.
func (x *Index) anyInRange(span chunk.Lines, fn func(address uint64) bool) bool {
	end := span.End()
	for line := span.Start; line < min(end, uint64(len(x.buckets))); line++ {
		for _, address := range x.buckets[line] {
			if fn(address) {
				return true
			}
		}
	}
	for line, bucket := range x.overflow {
		if line < span.Start || line >= end {
			continue
		}
		for _, address := range bucket {
			if fn(address) {
				return true
			}
		}
	}
	return false
}

func intersects(a, b chunk.Lines) bool {
	return a.Start < b.End() && b.Start < a.End()
}

// Bucket returns the addresses recorded line by line on line. Spans longer
// than MaxSpan are not included. The slice is owned by the index and must
// not be modified.
func (x *Index) Bucket(line uint64) []uint64 {
	if line < uint64(len(x.buckets)) {
		return x.buckets[line]
	}
	return x.overflow[line]
}

// Len returns the number of entries: one per (line, address) pair, plus one
// per long span.
func (x *Index) Len() int {
	return x.entries
}

// Capacity returns the number of dense lines.
func (x *Index) Capacity() uint64 {
	return uint64(len(x.buckets))
}
