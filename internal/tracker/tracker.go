// Package tracker ties the event stream of a traced process to a chunk store
// and exposes the per-frame API used by front-ends.
package tracker

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/mrzor/alloc-tracer/internal/chunk"
	"github.com/mrzor/alloc-tracer/internal/eventstream"
	"github.com/mrzor/alloc-tracer/internal/store"
)

// Options describes what to trace and how to index it.
type Options struct {
	// Command and Args launch the traced process.
	Command string
	Args    []string
	// Replay, if set, is read instead of launching Command.
	Replay io.Reader

	LineWidth  uint64
	MaxAddress uint64
	Observer   store.Observer
}

// Tracker owns a Store and the Stream feeding it. All methods except those
// of the underlying stream must be called from a single goroutine.
type Tracker struct {
	store  *store.Store
	stream *eventstream.Stream
}

// New builds a tracker. notifier is called from the reader goroutine
// whenever new events are queued; it may be nil.
func New(opts Options, notifier eventstream.Notifier) (*Tracker, error) {
	if opts.LineWidth == 0 {
		return nil, fmt.Errorf("line width must be positive")
	}

	var stream *eventstream.Stream
	switch {
	case opts.Replay != nil:
		stream = eventstream.FromReader(opts.Replay, notifier)
	case opts.Command != "":
		//nolint:gosec // Launching the traced command is the purpose of this tool
		stream = eventstream.New(exec.Command(opts.Command, opts.Args...), notifier)
	default:
		return nil, fmt.Errorf("no command or replay source specified")
	}

	return &Tracker{
		store: store.New(store.Options{
			LineWidth:  opts.LineWidth,
			MaxAddress: opts.MaxAddress,
			Observer:   opts.Observer,
		}),
		stream: stream,
	}, nil
}

// Start launches the traced process and begins reading its output.
func (t *Tracker) Start(ctx context.Context) error {
	return t.stream.Start(ctx)
}

// Stop terminates the traced process and the reader goroutine.
func (t *Tracker) Stop() error {
	return t.stream.Stop()
}

// Done is closed once the traced output has been fully read.
func (t *Tracker) Done() <-chan struct{} {
	return t.stream.Done()
}

// Wait returns the exit status of the traced process once its output is closed.
func (t *Tracker) Wait() error {
	return t.stream.Wait()
}

// Poll applies every event available right now, in order, without blocking
// and reports whether any was applied. Ingestion is checked once on entry:
// while it is disabled nothing is drained, and a corruption event disables
// it for the next Poll without holding back the rest of its batch.
func (t *Tracker) Poll() bool {
	if !t.store.IngestionEnabled() {
		return false
	}

	batch := t.stream.Queue().TryDrain()
	for _, e := range batch {
		t.store.Apply(e)
	}
	return len(batch) > 0
}

// IngestionEnabled reports whether Poll applies events.
func (t *Tracker) IngestionEnabled() bool {
	return t.store.IngestionEnabled()
}

// SetIngestionEnabled pauses or resumes ingestion.
func (t *Tracker) SetIngestionEnabled(enabled bool) {
	t.store.SetIngestionEnabled(enabled)
}

// Toggle flips ingestion and returns the new value.
func (t *Tracker) Toggle() bool {
	enabled := !t.store.IngestionEnabled()
	t.store.SetIngestionEnabled(enabled)
	return enabled
}

// Get returns the live chunk at address.
func (t *Tracker) Get(address uint64) (chunk.Chunk, bool) {
	return t.store.Get(address)
}

// Chunks returns a snapshot of the live chunks in no particular order.
func (t *Tracker) Chunks() []chunk.Chunk {
	return t.store.Chunks()
}

// Stats returns per-state counts of the live chunks.
func (t *Tracker) Stats() store.Stats {
	return t.store.Stats()
}

// Pending returns the number of events received but not yet applied.
func (t *Tracker) Pending() int {
	return t.stream.Queue().Len()
}

// Counters returns line statistics of the underlying stream.
func (t *Tracker) Counters() eventstream.Counters {
	return t.stream.Counters()
}

// LineWidth returns the grid line width in bytes.
func (t *Tracker) LineWidth() uint64 {
	return t.store.LineWidth()
}
