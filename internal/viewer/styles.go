package viewer

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mrzor/alloc-tracer/internal/chunk"
)

type styles struct {
	title   lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	empty   lipgloss.Style
	states  map[chunk.State]lipgloss.Style
}

var (
	colorOk        = lipgloss.Color("#2980B9")
	colorUsed      = lipgloss.Color("#E74C3C")
	colorCorrupted = lipgloss.Color("#8E44AD")
)

func defaultStyles() styles {
	brand := lipgloss.AdaptiveColor{Light: "26", Dark: "81"}
	subtle := lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	border := lipgloss.AdaptiveColor{Light: "250", Dark: "238"}

	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(brand),
		panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		label:   lipgloss.NewStyle().Bold(true).Foreground(brand).Width(9),
		dim:     lipgloss.NewStyle().Foreground(subtle),
		running: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		paused:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		empty:   lipgloss.NewStyle().Foreground(border),
		states: map[chunk.State]lipgloss.Style{
			chunk.Ok:           lipgloss.NewStyle().Foreground(colorOk),
			chunk.AlreadyUsed:  lipgloss.NewStyle().Foreground(colorUsed),
			chunk.AlreadyFreed: lipgloss.NewStyle().Foreground(colorCorrupted),
			chunk.Corrupted:    lipgloss.NewStyle().Foreground(colorCorrupted).Bold(true),
		},
	}
}

func (s styles) state(st chunk.State) lipgloss.Style {
	if style, ok := s.states[st]; ok {
		return style
	}
	return s.dim
}
