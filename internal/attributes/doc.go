// Package attributes evaluates user expressions against chunk fields.
//
// Expressions use the expr language and see these variables:
//
//	address, size, end  int     byte range of the chunk
//	label               string  label from the allocation event
//	state               string  "ok", "already used", "already freed", "corrupted"
//	solid               bool    state is ok or already used
//	start_line, lines   int     grid line span
//
// Two consumers:
//   - Evaluator: custom span attributes (NAME=EXPR), maps expand to NAME.key
//   - Filter: boolean predicate selecting which chunks a front-end lists
package attributes
