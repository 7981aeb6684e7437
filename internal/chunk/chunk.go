// Package chunk holds the tracked memory region type and its health states.
package chunk

import (
	"fmt"
	"math"
)

// PlaceholderSize is the nominal size given to placeholder chunks so they
// remain visible.
const PlaceholderSize = 100

// State is the health of a chunk.
type State uint8

// Chunk states.
const (
	// Ok is a regular allocation.
	Ok State = iota
	// AlreadyUsed is an allocation that overlapped a solid chunk when it was created.
	AlreadyUsed
	// AlreadyFreed marks a free of an address that was never tracked.
	AlreadyFreed
	// Corrupted marks an address the target reported as corrupted.
	Corrupted
)

func (s State) String() string {
	switch s {
	case Ok:
		return "ok"
	case AlreadyUsed:
		return "already used"
	case AlreadyFreed:
		return "already freed"
	case Corrupted:
		return "corrupted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Solid reports whether chunks in this state take part in overlap detection.
func (s State) Solid() bool {
	return s == Ok || s == AlreadyUsed
}

// Chunk is a tracked memory region.
type Chunk struct {
	Address uint64
	Size    uint64
	Label   string
	State   State
	Lines   Lines
}

// New returns an Ok chunk for an allocation.
func New(address, size uint64, label string, width uint64) Chunk {
	return Chunk{
		Address: address,
		Size:    size,
		Label:   label,
		State:   Ok,
		Lines:   NewLines(address, size, width),
	}
}

// Placeholder returns a synthetic chunk for an event that referenced an
// untracked address.
func Placeholder(address uint64, state State, width uint64) Chunk {
	return Chunk{
		Address: address,
		Size:    PlaceholderSize,
		State:   state,
		Lines:   NewLines(address, PlaceholderSize, width),
	}
}

// End returns the first address after the chunk. Chunks reaching past the
// top of the address space end at math.MaxUint64.
func (c Chunk) End() uint64 {
	if c.Size > math.MaxUint64-c.Address {
		return math.MaxUint64
	}
	return c.Address + c.Size
}

// Solid reports whether the chunk takes part in overlap detection.
func (c Chunk) Solid() bool {
	return c.State.Solid()
}

// Overlaps reports whether both chunks are solid and their byte ranges intersect.
func (c Chunk) Overlaps(other Chunk) bool {
	if !c.Solid() || !other.Solid() {
		return false
	}
	return (c.Address >= other.Address && c.Address < other.End()) ||
		(other.Address >= c.Address && other.Address < c.End())
}
