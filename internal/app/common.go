// Package app implements the rs485mon commands. The cmd layer parses flags
// and hands fully resolved options to the Run functions here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tonylturner/rs485mon/internal/capture"
	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/printer"
	"github.com/tonylturner/rs485mon/internal/telegram"
	"github.com/tonylturner/rs485mon/internal/tui"
)

// Env is shared by every command.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Logger     *logging.Logger
	Out        io.Writer
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e Env) config() *config.Config {
	if e.Config == nil {
		return config.CreateDefaultConfig()
	}
	return e.Config
}

// NewLogger builds the logger described by cfg. level, when non-empty,
// overrides the configured level.
func NewLogger(cfg *config.Config, level string) (*logging.Logger, error) {
	if level == "" {
		level = cfg.Logging.Level
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLoggerWithOptions(lvl, cfg.Logging.File, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func (e Env) registry() (*message.Registry, error) {
	reg, err := message.ForProfile(e.config().Monitor.DecoderProfile)
	if err != nil {
		return nil, err
	}
	reg.SetLogger(e.Logger)
	return reg, nil
}

// view fans decoded messages out to either the append-only log or the
// grouped TUI.
type view struct {
	printer printer.Printer
	grouped *tui.Grouped
}

func newView(env Env, group bool, title string) *view {
	if group {
		g := tui.NewGrouped(title)
		return &view{printer: g, grouped: g}
	}
	return &view{printer: printer.NewLogPrinter(env.out())}
}

func (v *view) Display(m message.Message) { v.printer.Display(m) }

func (v *view) Invalid(t *telegram.Telegram) {
	if v.grouped != nil {
		v.grouped.Invalid(t)
	}
}

func (v *view) Status(s string) {
	if v.grouped != nil {
		v.grouped.Status(s)
	}
}

// run drives work while the view is shown. In grouped mode the TUI owns
// the terminal until the user quits, which also cancels work. The log view
// just runs work to completion.
func (v *view) run(ctx context.Context, work func(context.Context) error) error {
	if v.grouped == nil {
		err := work(ctx)
		if ferr := v.printer.Flush(); err == nil {
			err = ferr
		}
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		err := work(ctx)
		if isInterrupt(err) {
			err = nil
		}
		v.grouped.Finished(err)
		result <- err
	}()
	go func() {
		<-ctx.Done()
		v.grouped.Quit()
	}()

	uiErr := v.grouped.Run()
	cancel()
	err := <-result
	if err == nil {
		err = uiErr
	}
	return err
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// isCapture reports whether path starts with the capture file header.
func isCapture(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(capture.Magic)+1)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == len(head) && string(head[:len(capture.Magic)]) == capture.Magic, nil
}

func isPCAP(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".pcap") || strings.HasSuffix(lower, ".cap")
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
