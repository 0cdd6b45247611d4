package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// Grouped drives the grouped view from other goroutines. It satisfies
// printer.Printer.
type Grouped struct {
	program *tea.Program
}

// NewGrouped prepares the view. Options are passed to tea.NewProgram; the
// alternate screen is used unless the caller supplies its own output.
func NewGrouped(title string, opts ...tea.ProgramOption) *Grouped {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &Grouped{program: tea.NewProgram(NewModel(title), opts...)}
}

// NewGroupedIO runs the view on explicit streams without the alternate
// screen.
func NewGroupedIO(title string, in io.Reader, out io.Writer) *Grouped {
	return NewGrouped(title, tea.WithInput(in), tea.WithOutput(out))
}

// Run blocks until the user quits.
func (g *Grouped) Run() error {
	_, err := g.program.Run()
	return err
}

// Display adds m to its row.
func (g *Grouped) Display(m message.Message) {
	g.program.Send(messageMsg{m: m})
}

// Invalid counts a telegram that failed its checksum.
func (g *Grouped) Invalid(t *telegram.Telegram) {
	g.program.Send(invalidMsg{t: t})
}

// Status shows a one line note under the table.
func (g *Grouped) Status(s string) {
	g.program.Send(statusMsg(s))
}

// Finished marks the input as exhausted; the view stays until quit.
func (g *Grouped) Finished(err error) {
	g.program.Send(doneMsg{err: err})
}

// Quit stops the view.
func (g *Grouped) Quit() {
	g.program.Quit()
}

func (g *Grouped) Flush() error { return nil }
