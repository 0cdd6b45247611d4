package tui

import (
	"errors"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

var errClipboardUnsupported = errors.New("no clipboard utility found (install xclip or xsel)")

// clipboardCopyMsg is sent after a clipboard copy operation.
type clipboardCopyMsg struct {
	lines int
	err   error
}

// writeClipboard is replaced in tests.
var writeClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// copyToClipboard copies text to the system clipboard.
func copyToClipboard(text string, lines int) tea.Cmd {
	return func() tea.Msg {
		return clipboardCopyMsg{lines: lines, err: writeClipboard(text)}
	}
}
