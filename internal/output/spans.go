package output

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrzor/alloc-tracer/internal/attributes"
	"github.com/mrzor/alloc-tracer/internal/chunk"
)

// Attribute keys set on chunk spans.
const (
	AttrAddress    = attribute.Key("chunk.address")
	AttrSize       = attribute.Key("chunk.size")
	AttrLabel      = attribute.Key("chunk.label")
	AttrState      = attribute.Key("chunk.state")
	AttrStartLine  = attribute.Key("chunk.start_line")
	AttrLineCount  = attribute.Key("chunk.lines")
	AttrFinalState = attribute.Key("chunk.final_state")
	AttrLeaked     = attribute.Key("chunk.leaked")
	AttrCommand    = attribute.Key("process.command_line")
)

// SpanRecorder turns chunk lifecycles into OpenTelemetry spans: one span
// per chunk, from allocation to free, under a root span for the whole
// session. It implements store.Observer and, like the store, is used from
// a single goroutine.
type SpanRecorder struct {
	tracer    trace.Tracer
	evaluator *attributes.Evaluator
	root      trace.Span
	rootCtx   context.Context
	spans     map[uint64]trace.Span // address -> open chunk span
}

// NewSpanRecorder starts the session root span. evaluator may be nil.
func NewSpanRecorder(tracer trace.Tracer, evaluator *attributes.Evaluator, command []string) *SpanRecorder {
	rootCtx, root := tracer.Start(context.Background(), "alloc-trace",
		trace.WithAttributes(AttrCommand.String(strings.Join(command, " "))),
	)
	return &SpanRecorder{
		tracer:    tracer,
		evaluator: evaluator,
		root:      root,
		rootCtx:   rootCtx,
		spans:     make(map[uint64]trace.Span),
	}
}

// ChunkAdded starts a span for a new chunk.
func (r *SpanRecorder) ChunkAdded(c chunk.Chunk) {
	if prev, ok := r.spans[c.Address]; ok {
		prev.End()
	}

	attrs := chunkAttributes(c)
	if r.evaluator != nil {
		attrs = append(attrs, r.evaluator.EvaluateCustomAttributes(c)...)
	}

	_, span := r.tracer.Start(r.rootCtx, spanName(c), trace.WithAttributes(attrs...))
	if c.State == chunk.AlreadyUsed {
		span.SetStatus(codes.Error, "overlaps a live chunk")
	}
	r.spans[c.Address] = span
}

// ChunkRemoved ends the chunk's span.
func (r *SpanRecorder) ChunkRemoved(c chunk.Chunk) {
	span, ok := r.spans[c.Address]
	if !ok {
		return
	}
	span.SetAttributes(AttrFinalState.String(c.State.String()))
	span.End()
	delete(r.spans, c.Address)
}

// ChunkCorrupted marks the chunk's span as failed and notes the ingestion pause.
func (r *SpanRecorder) ChunkCorrupted(c chunk.Chunk) {
	if span, ok := r.spans[c.Address]; ok {
		span.AddEvent("corrupted")
		span.SetAttributes(AttrState.String(c.State.String()))
		span.SetStatus(codes.Error, "corrupted")
	}
	r.root.AddEvent("ingestion paused", trace.WithAttributes(AttrAddress.String(hexAddress(c.Address))))
}

// FreedUntracked records a free of an address that was never allocated.
func (r *SpanRecorder) FreedUntracked(c chunk.Chunk) {
	r.root.AddEvent("free of untracked address", trace.WithAttributes(AttrAddress.String(hexAddress(c.Address))))
}

// Close ends every open chunk span as leaked, then the root span.
func (r *SpanRecorder) Close() {
	for address, span := range r.spans {
		span.SetAttributes(AttrLeaked.Bool(true))
		span.End()
		delete(r.spans, address)
	}
	r.root.End()
}

// Open returns the number of chunk spans not yet ended.
func (r *SpanRecorder) Open() int {
	return len(r.spans)
}

func spanName(c chunk.Chunk) string {
	switch c.State {
	case chunk.Corrupted:
		return "corrupted"
	case chunk.AlreadyFreed:
		return "already freed"
	default:
		return "alloc"
	}
}

func chunkAttributes(c chunk.Chunk) []attribute.KeyValue {
	//nolint:gosec // Sizes above 2^63 are not realistic allocations
	return []attribute.KeyValue{
		AttrAddress.String(hexAddress(c.Address)),
		AttrSize.Int64(int64(c.Size)),
		AttrLabel.String(c.Label),
		AttrState.String(c.State.String()),
		AttrStartLine.Int64(int64(c.Lines.Start)),
		AttrLineCount.Int64(int64(c.Lines.Count)),
	}
}

func hexAddress(address uint64) string {
	return "0x" + strconv.FormatUint(address, 16)
}
