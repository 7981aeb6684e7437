// Package output exports tracked chunks as OpenTelemetry spans.
//
// SpanRecorder is a store.Observer that:
//   - Starts a span when a chunk is added (allocation or corruption placeholder)
//   - Ends it when the chunk is freed or replaced
//   - Marks AlreadyUsed and Corrupted chunks with an error status
//   - Adds root span events for untracked frees and ingestion pauses
//
// It does NOT:
//   - Decide chunk state (store)
//   - Parse events (event)
//   - Own the tracer provider (otel)
//
// Custom attributes come from attributes.Evaluator and are evaluated once,
// when the span starts.
package output
