// Package store reconstructs live memory chunks from allocation events.
//
// Store keeps the address -> chunk map together with a line index used for
// overlap detection, and separates commands from queries:
//
// Commands (mutations):
//   - Apply(event) - Alloc, Free or Corrupted
//   - SetIngestionEnabled(bool) - Play/pause
//
// Queries (read-only):
//   - Get(address) - Chunk lookup for detail display
//   - Chunks() - Unordered snapshot for drawing
//   - Stats() - Per-state counts
//   - Collides(chunk) - Overlap test against live solid chunks
//
// State machine (per address):
//
//	          Alloc (no overlap)          Alloc (overlap)
//	                │                           │
//	                ▼                           ▼
//	           ┌────────┐                ┌─────────────┐
//	           │   Ok   │                │ AlreadyUsed │
//	           └───┬────┘                └──────┬──────┘
//	               │ Corrupted                  │ Corrupted
//	               ▼                            ▼
//	           ┌─────────────────────────────────────┐
//	           │              Corrupted              │ ◄── Corrupted (untracked):
//	           └─────────────────────────────────────┘     placeholder
//
//	Free removes any live chunk. Free of an untracked address reports an
//	AlreadyFreed placeholder to the Observer and keeps nothing.
//	Every Corrupted event also disables ingestion.
//
// AlreadyUsed is decided once, when the chunk is created, and is never
// cleared afterwards.
package store
