package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tonylturner/rs485mon/internal/capture"
	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// ConvertOptions names the input and output of a conversion. The direction
// follows the input format: captures become pcaps and pcaps become captures.
type ConvertOptions struct {
	Input  string
	Output string
}

// RunConvert converts between the capture format and pcap. It returns the
// number of telegrams written.
func RunConvert(env Env, opts ConvertOptions) (int, error) {
	kind, err := DetectInput(opts.Input)
	if err != nil {
		return 0, err
	}

	var telegrams []*telegram.Telegram
	switch kind {
	case InputCapture:
		telegrams, err = readCaptureTelegrams(opts.Input)
	case InputPCAP:
		telegrams, err = readPCAPTelegrams(opts.Input)
	default:
		return 0, fmt.Errorf("%s is neither a capture nor a pcap; decode raw dumps with 'parse --output'", opts.Input)
	}
	if err != nil {
		return 0, errors.WrapCaptureError(err, opts.Input)
	}

	if dir := filepath.Dir(opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	var written int
	if kind == InputCapture {
		written, err = writePCAP(opts.Output, telegrams)
	} else {
		written, err = writeCapture(opts.Output, telegrams)
	}
	if err != nil {
		return written, err
	}
	env.Logger.Info("Converted %d telegrams: %s -> %s", written, opts.Input, opts.Output)
	return written, nil
}

func readCaptureTelegrams(path string) ([]*telegram.Telegram, error) {
	r, err := capture.Open(path, nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []*telegram.Telegram
	for {
		t, err := r.NextTelegram()
		if err != nil {
			if isEOF(err) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, t)
	}
}

func readPCAPTelegrams(path string) ([]*telegram.Telegram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return capture.ImportPCAP(f)
}

func writePCAP(path string, telegrams []*telegram.Telegram) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := capture.ExportPCAP(f, telegrams)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}

// writeCapture skips telegrams with a bad checksum, as the capture writer
// does for live traffic.
func writeCapture(path string, telegrams []*telegram.Telegram) (int, error) {
	w, err := capture.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	for _, t := range telegrams {
		if _, err := w.Push(t); err != nil {
			w.Close()
			return w.Count(), fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return w.Count(), err
	}
	return w.Count(), nil
}
