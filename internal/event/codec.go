package event

import (
	"strconv"
	"strings"
)

// Protocol tags.
const (
	tagAlloc     = "m"
	tagFree      = "f"
	tagCorrupted = "c"
)

// Decode parses one protocol line.
//
// Grammar (addresses and sizes are unprefixed hex):
//
//	m:<addr>,<size>[,<label>]
//	f:<addr>[,<label>]
//	c:<addr>
//
// Everything after the last numeric field is rejoined with commas, so labels
// may contain commas. Lines that do not match are rejected with ok == false;
// the caller is expected to drop them.
func Decode(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")

	tag, data, found := strings.Cut(line, ":")
	if !found {
		return Event{}, false
	}

	fields := strings.Split(data, ",")
	address, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return Event{}, false
	}
	rest := fields[1:]

	switch tag {
	case tagAlloc:
		if len(rest) == 0 {
			return Event{}, false
		}
		size, err := strconv.ParseUint(rest[0], 16, 64)
		if err != nil {
			return Event{}, false
		}
		return Alloc(address, size, strings.Join(rest[1:], ",")), true
	case tagFree:
		return Free(address, strings.Join(rest, ",")), true
	case tagCorrupted:
		return Corrupted(address), true
	default:
		return Event{}, false
	}
}

// Encode renders e as a protocol line without the trailing newline.
// Decode(Encode(e)) yields e for every event Decode can produce.
func Encode(e Event) string {
	var b strings.Builder
	switch e.Kind {
	case KindAlloc:
		b.WriteString(tagAlloc)
	case KindFree:
		b.WriteString(tagFree)
	case KindCorrupted:
		b.WriteString(tagCorrupted)
	default:
		return ""
	}
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(e.Address, 16))
	if e.Kind == KindAlloc {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(e.Size, 16))
	}
	if e.Kind != KindCorrupted && e.Label != "" {
		b.WriteByte(',')
		b.WriteString(e.Label)
	}
	return b.String()
}
