// Package viewer is the terminal front-end of alloc-tracer.
//
// It polls the tracker every tick (and whenever the stream signals new
// events), lists the live chunks sorted by address, draws a map of the grid
// lines colored by chunk state, and shows the selected chunk in detail.
// Space toggles ingestion, which is also how a corruption pause is resumed.
package viewer
