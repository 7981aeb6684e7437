package viewer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrzor/alloc-tracer/internal/attributes"
	"github.com/mrzor/alloc-tracer/internal/chunk"
	"github.com/mrzor/alloc-tracer/internal/eventstream"
	"github.com/mrzor/alloc-tracer/internal/store"
)

// Source is the tracker API the viewer drives. *tracker.Tracker implements it.
type Source interface {
	Poll() bool
	Toggle() bool
	IngestionEnabled() bool
	Chunks() []chunk.Chunk
	Get(address uint64) (chunk.Chunk, bool)
	Stats() store.Stats
	Pending() int
	Counters() eventstream.Counters
	LineWidth() uint64
	Done() <-chan struct{}
}

// Options configures the viewer.
type Options struct {
	// Title is shown in the header, usually the traced command line.
	Title string
	// Filter selects the chunks listed in the table; nil lists all.
	Filter *attributes.Filter
	// Tick is the poll interval.
	Tick time.Duration
	// MaxAddress bounds the line map.
	MaxAddress uint64
	// Notify wakes the viewer as soon as events are queued. Optional.
	Notify <-chan struct{}
}

type (
	tickMsg   struct{}
	wakeMsg   struct{}
	exitedMsg struct{}
)

const (
	fixedRows   = 12   // header, detail panel, status and help
	maxMapLines = 1024 // the line map shows at most this many lines
)

// Model is the bubbletea model of the terminal viewer.
type Model struct {
	src      Source
	opts     Options
	maxLines uint64

	keys   keyMap
	help   help.Model
	table  table.Model
	styles styles

	chunks  []chunk.Chunk // every live chunk, from the last refresh
	visible []chunk.Chunk // chunks passing the filter, sorted by address
	exited  bool
	width   int
	height  int
}

// New builds a viewer over src.
func New(src Source, opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = 33 * time.Millisecond
	}

	var maxLines uint64
	if w := src.LineWidth(); w > 0 {
		maxLines = min(opts.MaxAddress/w, maxMapLines)
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Address", Width: 14},
			{Title: "Size", Width: 10},
			{Title: "Label", Width: 18},
			{Title: "State", Width: 13},
			{Title: "Lines", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("15")).Background(colorOk).Bold(true)
	t.SetStyles(ts)

	m := Model{
		src:      src,
		opts:     opts,
		maxLines: maxLines,
		keys:     defaultKeyMap(),
		help:     help.New(),
		table:    t,
		styles:   defaultStyles(),
	}
	m.refresh()
	return m
}

// NewNotifier returns a notifier for the event stream and the channel the
// viewer waits on. Notifications coalesce: at most one is pending.
func NewNotifier() (eventstream.Notifier, <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return eventstream.NotifierFunc(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}), ch
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.opts.Tick), waitExitCmd(m.src.Done())}
	if m.opts.Notify != nil {
		cmds = append(cmds, waitWakeCmd(m.opts.Notify))
	}
	return tea.Batch(cmds...)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{} })
}

func waitWakeCmd(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return wakeMsg{}
	}
}

func waitExitCmd(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return exitedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.poll()
		return m, tickCmd(m.opts.Tick)

	case wakeMsg:
		m.poll()
		return m, waitWakeCmd(m.opts.Notify)

	case exitedMsg:
		m.exited = true
		m.poll()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(3, msg.Height-fixedRows-m.lineMapRows()))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.src.Toggle()
			m.poll()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.table.GotoTop()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// poll applies whatever the stream has queued and refreshes the rows when
// the store changed.
func (m *Model) poll() {
	if m.src.Poll() {
		m.refresh()
	}
}

func (m *Model) refresh() {
	selected, hadSelection := m.Selected()

	m.chunks = m.src.Chunks()
	m.visible = make([]chunk.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		if m.opts.Filter == nil || m.opts.Filter.Match(c) {
			m.visible = append(m.visible, c)
		}
	}
	sort.Slice(m.visible, func(i, j int) bool { return m.visible[i].Address < m.visible[j].Address })

	rows := make([]table.Row, len(m.visible))
	cursor := 0
	for i, c := range m.visible {
		rows[i] = table.Row{
			formatAddress(c.Address),
			strconv.FormatUint(c.Size, 10),
			c.Label,
			c.State.String(),
			fmt.Sprintf("%d+%d", c.Lines.Start, c.Lines.Count),
		}
		if hadSelection && c.Address == selected.Address {
			cursor = i
		}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(cursor)
}

// Selected returns the chunk under the table cursor.
func (m Model) Selected() (chunk.Chunk, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return chunk.Chunk{}, false
	}
	return m.visible[i], true
}

// Visible returns the listed chunks in display order.
func (m Model) Visible() []chunk.Chunk {
	return m.visible
}

func (m Model) lineMapRows() int {
	if m.maxLines == 0 {
		return 0
	}
	return int((m.maxLines + lineMapColumns - 1) / lineMapColumns)
}

func (m Model) View() string {
	sections := []string{m.header()}
	if m.maxLines > 0 {
		sections = append(sections, m.styles.panel.Render(m.renderLineMap()))
	}
	sections = append(sections,
		m.table.View(),
		m.styles.panel.Render(m.detail()),
		m.status(),
		m.help.View(m.keys),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) header() string {
	title := m.styles.title.Render("alloc-tracer")
	if m.opts.Title != "" {
		title += " " + m.styles.dim.Render(m.opts.Title)
	}
	if m.opts.Filter != nil && m.opts.Filter.String() != "" {
		title += " " + m.styles.dim.Render("filter: "+m.opts.Filter.String())
	}
	return title
}

// detail describes the selected chunk as the store holds it now, which may
// be newer than the table rows.
func (m Model) detail() string {
	selected, ok := m.Selected()
	if !ok {
		return m.styles.dim.Render("no chunk selected")
	}
	c, ok := m.src.Get(selected.Address)
	if !ok {
		return m.styles.dim.Render("chunk at " + formatAddress(selected.Address) + " was freed")
	}

	label := c.Label
	if label == "" {
		label = m.styles.dim.Render("(none)")
	}

	lines := []string{
		m.styles.label.Render("Address") + formatAddress(c.Address),
		m.styles.label.Render("Size") + strconv.FormatUint(c.Size, 10) + " bytes",
		m.styles.label.Render("Label") + label,
		m.styles.label.Render("State") + m.styles.state(c.State).Render(c.State.String()),
	}
	return strings.Join(lines, "\n")
}

func (m Model) status() string {
	state := m.styles.paused.Render("paused")
	if m.src.IngestionEnabled() {
		state = m.styles.running.Render("running")
	}
	if m.exited {
		state += m.styles.dim.Render(" (process exited)")
	}

	st := m.src.Stats()
	counters := m.src.Counters()
	return fmt.Sprintf("%s  chunks %d  %s %d  %s %d  %s %d  %s %d  index %d  pending %d  rejected %d",
		state, st.Total(),
		m.styles.state(chunk.Ok).Render("ok"), st.Ok,
		m.styles.state(chunk.AlreadyUsed).Render("used"), st.AlreadyUsed,
		m.styles.state(chunk.AlreadyFreed).Render("freed"), st.AlreadyFreed,
		m.styles.state(chunk.Corrupted).Render("corrupted"), st.Corrupted,
		st.IndexEntries, m.src.Pending(), counters.Rejected,
	)
}

func formatAddress(address uint64) string {
	return "0x" + strconv.FormatUint(address, 16)
}
