package ui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// editorCommand is replaced in tests.
var editorCommand = func(editor, path string) *exec.Cmd {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Editor returns $EDITOR or the platform default.
func Editor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "nano"
}

// EditConfig opens the configuration file in the user's editor.
func EditConfig(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := editorCommand(Editor(), path).Run(); err != nil {
		return fmt.Errorf("open editor: %w", err)
	}
	return nil
}
