package viewer

import (
	"strings"

	"github.com/mrzor/alloc-tracer/internal/chunk"
)

const lineMapColumns = 64

// severity orders states for the line map; 0 means no chunk.
func severity(s chunk.State) int {
	switch s {
	case chunk.Ok:
		return 1
	case chunk.AlreadyFreed:
		return 2
	case chunk.AlreadyUsed:
		return 3
	case chunk.Corrupted:
		return 4
	default:
		return 0
	}
}

var stateBySeverity = [...]chunk.State{1: chunk.Ok, 2: chunk.AlreadyFreed, 3: chunk.AlreadyUsed, 4: chunk.Corrupted}

// lineMap returns, for every line below maxLines, the highest severity of
// the chunks covering it.
func lineMap(chunks []chunk.Chunk, maxLines uint64) []int {
	cells := make([]int, maxLines)
	for _, c := range chunks {
		end := min(c.Lines.End(), maxLines)
		sev := severity(c.State)
		for line := c.Lines.Start; line < end; line++ {
			if sev > cells[line] {
				cells[line] = sev
			}
		}
	}
	return cells
}

func (m Model) renderLineMap() string {
	cells := lineMap(m.chunks, m.maxLines)

	var b strings.Builder
	for i, sev := range cells {
		if i > 0 && i%lineMapColumns == 0 {
			b.WriteByte('\n')
		}
		if sev == 0 {
			b.WriteString(m.styles.empty.Render("·"))
			continue
		}
		b.WriteString(m.styles.state(stateBySeverity[sev]).Render("█"))
	}
	return b.String()
}
