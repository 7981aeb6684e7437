// Package event defines the allocation events emitted by a traced process and
// the line codec used to read them from its standard output.
package event

import "fmt"

// Kind identifies which fields of an Event are meaningful.
type Kind uint8

// Event kinds, one per protocol tag.
const (
	KindAlloc     Kind = iota + 1 // "m"
	KindFree                      // "f"
	KindCorrupted                 // "c"
)

func (k Kind) String() string {
	switch k {
	case KindAlloc:
		return "alloc"
	case KindFree:
		return "free"
	case KindCorrupted:
		return "corrupted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a single allocation event.
// Size is only set for KindAlloc; Label is empty for KindCorrupted.
type Event struct {
	Kind    Kind
	Address uint64
	Size    uint64
	Label   string
}

// Alloc returns an allocation event.
func Alloc(address, size uint64, label string) Event {
	return Event{Kind: KindAlloc, Address: address, Size: size, Label: label}
}

// Free returns a free event.
func Free(address uint64, label string) Event {
	return Event{Kind: KindFree, Address: address, Label: label}
}

// Corrupted returns a corruption event.
func Corrupted(address uint64) Event {
	return Event{Kind: KindCorrupted, Address: address}
}

// String returns the event in wire form, without the line terminator.
func (e Event) String() string {
	return Encode(e)
}
