package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mrzor/alloc-tracer/internal/attributes"
	"github.com/mrzor/alloc-tracer/internal/config"
	"github.com/mrzor/alloc-tracer/internal/event"
	"github.com/mrzor/alloc-tracer/internal/store"
)

func newRecorder(t *testing.T, customAttrs []config.CustomAttribute) (*SpanRecorder, *tracetest.SpanRecorder) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	evaluator, err := attributes.NewEvaluator(customAttrs)
	require.NoError(t, err)

	return NewSpanRecorder(tp.Tracer("test"), evaluator, []string{"python", "./test.py"}), sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func endedByName(sr *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func TestSpanRecorder_AllocFree(t *testing.T) {
	rec, sr := newRecorder(t, []config.CustomAttribute{{Name: "chunk.big", Expression: `size > 0x100`}})
	s := store.New(store.Options{LineWidth: 0x400, MaxAddress: 0x40000, Observer: rec})

	s.Apply(event.Alloc(0x400, 0x800, "aa"))
	assert.Equal(t, 1, rec.Open())
	s.Apply(event.Free(0x400, "aa"))
	assert.Equal(t, 0, rec.Open())

	spans := endedByName(sr, "alloc")
	require.Len(t, spans, 1)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "0x400", attrs[AttrAddress].AsString())
	assert.Equal(t, int64(0x800), attrs[AttrSize].AsInt64())
	assert.Equal(t, "aa", attrs[AttrLabel].AsString())
	assert.Equal(t, "ok", attrs[AttrState].AsString())
	assert.Equal(t, "ok", attrs[AttrFinalState].AsString())
	assert.Equal(t, int64(3), attrs[AttrLineCount].AsInt64())
	assert.True(t, attrs["chunk.big"].AsBool())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestSpanRecorder_AlreadyUsedIsError(t *testing.T) {
	rec, sr := newRecorder(t, nil)
	s := store.New(store.Options{LineWidth: 0x400, MaxAddress: 0x40000, Observer: rec})

	s.Apply(event.Alloc(0x0, 0x400, "a"))
	s.Apply(event.Alloc(0x100, 0x10, "b"))
	rec.Close()

	spans := endedByName(sr, "alloc")
	require.Len(t, spans, 2)
	for _, span := range spans {
		attrs := attrMap(span.Attributes())
		assert.True(t, attrs[AttrLeaked].AsBool())
		if attrs[AttrAddress].AsString() == "0x100" {
			assert.Equal(t, codes.Error, span.Status().Code)
		} else {
			assert.Equal(t, codes.Unset, span.Status().Code)
		}
		assert.Equal(t, spans[0].Parent().SpanID(), span.Parent().SpanID(), "chunk spans share the root")
	}

	roots := endedByName(sr, "alloc-trace")
	require.Len(t, roots, 1)
	assert.Equal(t, "python ./test.py", attrMap(roots[0].Attributes())[AttrCommand].AsString())
}

func TestSpanRecorder_Corruption(t *testing.T) {
	rec, sr := newRecorder(t, nil)
	s := store.New(store.Options{LineWidth: 0x400, MaxAddress: 0x40000, Observer: rec})

	s.Apply(event.Alloc(0x10, 0x10, "victim"))
	s.Apply(event.Corrupted(0x10))
	s.Apply(event.Corrupted(0x900))
	s.Apply(event.Free(0x10, ""))
	rec.Close()

	allocs := endedByName(sr, "alloc")
	require.Len(t, allocs, 1)
	assert.Equal(t, codes.Error, allocs[0].Status().Code)
	assert.Equal(t, "corrupted", attrMap(allocs[0].Attributes())[AttrFinalState].AsString())
	require.Len(t, allocs[0].Events(), 1)
	assert.Equal(t, "corrupted", allocs[0].Events()[0].Name)

	placeholders := endedByName(sr, "corrupted")
	require.Len(t, placeholders, 1)
	assert.Equal(t, codes.Error, placeholders[0].Status().Code)

	roots := endedByName(sr, "alloc-trace")
	require.Len(t, roots, 1)
	var pauses int
	for _, e := range roots[0].Events() {
		if e.Name == "ingestion paused" {
			pauses++
		}
	}
	assert.Equal(t, 2, pauses)
}

func TestSpanRecorder_FreedUntracked(t *testing.T) {
	rec, sr := newRecorder(t, nil)
	s := store.New(store.Options{LineWidth: 0x400, MaxAddress: 0x40000, Observer: rec})

	s.Apply(event.Free(0xbad, ""))
	rec.Close()

	assert.Empty(t, endedByName(sr, "already freed"), "untracked frees are events, not spans")

	roots := endedByName(sr, "alloc-trace")
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Events(), 1)
	e := roots[0].Events()[0]
	assert.Equal(t, "free of untracked address", e.Name)
	assert.Equal(t, "0xbad", attrMap(e.Attributes)[AttrAddress].AsString())
}

func TestSpanRecorder_ReplacedAllocation(t *testing.T) {
	rec, sr := newRecorder(t, nil)
	s := store.New(store.Options{LineWidth: 0x400, MaxAddress: 0x40000, Observer: rec})

	s.Apply(event.Alloc(0x10, 0x10, "first"))
	s.Apply(event.Alloc(0x10, 0x10, "second"))

	assert.Equal(t, 1, rec.Open())
	ended := endedByName(sr, "alloc")
	require.Len(t, ended, 1)
	assert.Equal(t, "first", attrMap(ended[0].Attributes())[AttrLabel].AsString())
}
