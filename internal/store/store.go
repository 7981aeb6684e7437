package store

import (
	"github.com/mrzor/alloc-tracer/internal/chunk"
	"github.com/mrzor/alloc-tracer/internal/event"
	"github.com/mrzor/alloc-tracer/internal/lineindex"
)

// Observer is notified of chunk lifecycle transitions as the store applies
// events. Calls happen synchronously inside Apply.
type Observer interface {
	ChunkAdded(c chunk.Chunk)
	ChunkRemoved(c chunk.Chunk)
	ChunkCorrupted(c chunk.Chunk)
	FreedUntracked(c chunk.Chunk)
}

// Options configures a Store.
type Options struct {
	// LineWidth is the number of bytes per grid line.
	LineWidth uint64
	// MaxAddress bounds the densely indexed part of the address space.
	MaxAddress uint64
	// Observer, if set, receives lifecycle callbacks.
	Observer Observer
}

// Stats counts live chunks per state.
type Stats struct {
	Ok           int
	AlreadyUsed  int
	AlreadyFreed int
	Corrupted    int
	IndexEntries int
}

// Total returns the number of live chunks.
func (s Stats) Total() int {
	return s.Ok + s.AlreadyUsed + s.AlreadyFreed + s.Corrupted
}

// Store holds the live chunks reconstructed from allocation events.
// It is owned by a single goroutine and does no locking.
type Store struct {
	width    uint64
	chunks   map[uint64]*chunk.Chunk // address -> live chunk
	index    *lineindex.Index
	observer Observer
	enabled  bool
}

// New creates an empty store with ingestion enabled.
func New(opts Options) *Store {
	return &Store{
		width:    opts.LineWidth,
		chunks:   make(map[uint64]*chunk.Chunk),
		index:    lineindex.New(opts.MaxAddress / opts.LineWidth),
		observer: opts.Observer,
		enabled:  true,
	}
}

// Apply applies one event. It never fails: unknown addresses produce
// placeholders and overlaps are recorded as chunk state.
func (s *Store) Apply(e event.Event) {
	switch e.Kind {
	case event.KindAlloc:
		s.alloc(e.Address, e.Size, e.Label)
	case event.KindFree:
		s.free(e.Address)
	case event.KindCorrupted:
		s.corrupted(e.Address)
	}
}

// Get returns the live chunk at address.
func (s *Store) Get(address uint64) (chunk.Chunk, bool) {
	c, ok := s.chunks[address]
	if !ok {
		return chunk.Chunk{}, false
	}
	return *c, true
}

// Chunks returns a snapshot of the live chunks in no particular order.
func (s *Store) Chunks() []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, *c)
	}
	return out
}

// Len returns the number of live chunks.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Stats returns per-state counts of the live chunks.
func (s *Store) Stats() Stats {
	st := Stats{IndexEntries: s.index.Len()}
	for _, c := range s.chunks {
		switch c.State {
		case chunk.Ok:
			st.Ok++
		case chunk.AlreadyUsed:
			st.AlreadyUsed++
		case chunk.AlreadyFreed:
			st.AlreadyFreed++
		case chunk.Corrupted:
			st.Corrupted++
		}
	}
	return st
}

// IngestionEnabled reports whether buffered events should be applied.
func (s *Store) IngestionEnabled() bool {
	return s.enabled
}

// SetIngestionEnabled pauses or resumes ingestion.
func (s *Store) SetIngestionEnabled(enabled bool) {
	s.enabled = enabled
}

// LineWidth returns the grid line width in bytes.
func (s *Store) LineWidth() uint64 {
	return s.width
}

// Collides reports whether c overlaps any live solid chunk, including one
// still live at c's own address.
func (s *Store) Collides(c chunk.Chunk) bool {
	return s.index.Any(c.Lines, func(address uint64) bool {
		other, ok := s.chunks[address]
		return ok && c.Overlaps(*other)
	})
}

func (s *Store) alloc(address, size uint64, label string) {
	c := chunk.New(address, size, label, s.width)
	if s.Collides(c) {
		c.State = chunk.AlreadyUsed
	}

	// The new entry replaces whatever is live at the same address, after
	// it has been checked against it.
	if prev, ok := s.chunks[address]; ok {
		s.remove(prev)
	}
	s.insert(&c)
}

func (s *Store) free(address uint64) {
	if c, ok := s.chunks[address]; ok {
		s.remove(c)
		return
	}

	// Freed something never seen: report it, but keep nothing.
	if s.observer != nil {
		s.observer.FreedUntracked(chunk.Placeholder(address, chunk.AlreadyFreed, s.width))
	}
}

func (s *Store) corrupted(address uint64) {
	s.enabled = false

	if c, ok := s.chunks[address]; ok {
		c.State = chunk.Corrupted
		if s.observer != nil {
			s.observer.ChunkCorrupted(*c)
		}
		return
	}

	c := chunk.Placeholder(address, chunk.Corrupted, s.width)
	s.insert(&c)
	if s.observer != nil {
		s.observer.ChunkCorrupted(c)
	}
}

func (s *Store) insert(c *chunk.Chunk) {
	s.index.Insert(c.Address, c.Lines)
	s.chunks[c.Address] = c
	if s.observer != nil {
		s.observer.ChunkAdded(*c)
	}
}

func (s *Store) remove(c *chunk.Chunk) {
	s.index.Remove(c.Address, c.Lines)
	delete(s.chunks, c.Address)
	if s.observer != nil {
		s.observer.ChunkRemoved(*c)
	}
}
