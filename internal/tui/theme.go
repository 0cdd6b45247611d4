package tui

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors of the grouped view.
type Palette struct {
	Text   lipgloss.Color
	Faint  lipgloss.Color
	Title  lipgloss.Color
	Column lipgloss.Color
	Count  lipgloss.Color
	Delta  lipgloss.Color
	Key    lipgloss.Color
	OK     lipgloss.Color
	Warn   lipgloss.Color
	Fail   lipgloss.Color
}

// DefaultPalette suits dark terminals.
var DefaultPalette = Palette{
	Text:   lipgloss.Color("#d8dee9"),
	Faint:  lipgloss.Color("#6c7a96"),
	Title:  lipgloss.Color("#88c0d0"),
	Column: lipgloss.Color("#81a1c1"),
	Count:  lipgloss.Color("#b48ead"),
	Delta:  lipgloss.Color("#8fbcbb"),
	Key:    lipgloss.Color("#ebcb8b"),
	OK:     lipgloss.Color("#a3be8c"),
	Warn:   lipgloss.Color("#d08770"),
	Fail:   lipgloss.Color("#bf616a"),
}

// Styles are the rendered pieces of the grouped view.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Count  lipgloss.Style
	Offset lipgloss.Style
	Parsed lipgloss.Style
	Dim    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	KeyBinding lipgloss.Style
	KeyHint    lipgloss.Style
	Footer     lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// NewStyles derives the view styles from p.
func NewStyles(p Palette) Styles {
	return Styles{
		Title:  fg(p.Title).Bold(true).Padding(0, 1),
		Header: fg(p.Column).Bold(true),
		Count:  fg(p.Count),
		Offset: fg(p.Delta),
		Parsed: fg(p.Text),
		Dim:    fg(p.Faint).Italic(true),

		Success: fg(p.OK),
		Warning: fg(p.Warn),
		Error:   fg(p.Fail).Bold(true),

		KeyBinding: fg(p.Key).Bold(true),
		KeyHint:    fg(p.Faint),
		Footer:     fg(p.Faint).MarginTop(1),
	}
}

var DefaultStyles = NewStyles(DefaultPalette)
