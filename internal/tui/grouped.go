// Package tui renders the grouped live view: one refreshing row per
// telegram id instead of an append-only log.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// TableHeader heads both the screen and the clipboard export.
const TableHeader = "(Count) [Offset] Raw Data -> Parsed Data"

// Messages delivered through tea.Program.Send.
type (
	messageMsg struct{ m message.Message }
	invalidMsg struct{ t *telegram.Telegram }
	statusMsg  string
	doneMsg    struct{ err error }
)

type row struct {
	count  int
	last   time.Time
	offset time.Duration
	text   string
}

// Model is the bubbletea model of the grouped view. The row map is owned
// by the update loop, so it needs no locking.
type Model struct {
	title   string
	styles  Styles
	rows    map[uint16]*row
	invalid int
	total   int
	status  string
	done    bool
	err     error
	width   int
}

// NewModel creates an empty grouped view.
func NewModel(title string) Model {
	return Model{
		title:  title,
		styles: DefaultStyles,
		rows:   make(map[uint16]*row),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "y":
			return m, copyToClipboard(m.Table(), len(m.rows))
		case "c":
			m.rows = make(map[uint16]*row)
			m.invalid = 0
			m.total = 0
			m.status = "cleared"
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case messageMsg:
		m.add(msg.m)
	case invalidMsg:
		m.invalid++
	case statusMsg:
		m.status = string(msg)
	case doneMsg:
		m.done = true
		m.err = msg.err
	case clipboardCopyMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("copied %d rows to clipboard", msg.lines)
		}
	}
	return m, nil
}

func (m *Model) add(msg message.Message) {
	t := msg.Telegram()
	r, ok := m.rows[t.ID()]
	if !ok {
		r = &row{}
		m.rows[t.ID()] = r
	}
	ts := t.Timestamp()
	if r.count > 0 && !r.last.IsZero() && !ts.IsZero() {
		r.offset = ts.Sub(r.last)
	}
	r.count++
	r.last = ts
	r.text = message.Detailed(msg)
	m.total++
}

func (m Model) sortedIDs() []uint16 {
	ids := make([]uint16, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func formatRow(r *row) (count, offset, text string) {
	return fmt.Sprintf("(%5d)", r.count), fmt.Sprintf("[%4d ms]", r.offset.Milliseconds()), r.text
}

// Table renders the rows as plain text.
func (m Model) Table() string {
	var b strings.Builder
	b.WriteString(TableHeader)
	b.WriteByte('\n')
	for _, id := range m.sortedIDs() {
		count, offset, text := formatRow(m.rows[id])
		b.WriteString(count + " " + offset + " " + text + "\n")
	}
	return b.String()
}

func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(s.Header.Render(TableHeader))
	b.WriteByte('\n')
	for _, id := range m.sortedIDs() {
		count, offset, text := formatRow(m.rows[id])
		b.WriteString(s.Count.Render(count) + " " + s.Offset.Render(offset) + " " + s.Parsed.Render(text))
		b.WriteByte('\n')
	}
	if len(m.rows) == 0 {
		b.WriteString(s.Dim.Render("waiting for telegrams..."))
		b.WriteByte('\n')
	}

	summary := fmt.Sprintf("%d telegrams, %d ids", m.total, len(m.rows))
	if m.invalid > 0 {
		summary += ", " + s.Warning.Render(fmt.Sprintf("%d checksum errors", m.invalid))
	}
	b.WriteByte('\n')
	b.WriteString(summary)
	b.WriteByte('\n')

	switch {
	case m.err != nil:
		b.WriteString(s.Error.Render("stopped: " + m.err.Error()))
		b.WriteByte('\n')
	case m.done:
		b.WriteString(s.Success.Render("input finished"))
		b.WriteByte('\n')
	}
	if m.status != "" {
		b.WriteString(s.Dim.Render(m.status))
		b.WriteByte('\n')
	}

	keys := []string{
		s.KeyBinding.Render("q") + s.KeyHint.Render(" quit"),
		s.KeyBinding.Render("y") + s.KeyHint.Render(" copy"),
		s.KeyBinding.Render("c") + s.KeyHint.Render(" clear"),
	}
	b.WriteString(s.Footer.Render(strings.Join(keys, "  ")))

	out := b.String()
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}
