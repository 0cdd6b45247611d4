package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tonylturner/rs485mon/internal/capture"
	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/metrics"
	"github.com/tonylturner/rs485mon/internal/pipeline"
	"github.com/tonylturner/rs485mon/internal/progress"
	"github.com/tonylturner/rs485mon/internal/replay"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// ParseOptions selects how a recorded file is decoded and shown.
type ParseOptions struct {
	Path  string
	Group bool

	// Replay paces output with the configured cycle; Realtime reproduces
	// the recorded gaps scaled by Speed. Realtime implies Replay.
	Replay   bool
	Realtime bool
	Speed    float64

	// Output, when set, receives every accepted telegram as a capture.
	Output   string
	Progress bool
}

// InputKind is the detected format of a file given to parse or stats.
type InputKind int

const (
	InputRaw InputKind = iota
	InputCapture
	InputPCAP
)

func (k InputKind) String() string {
	switch k {
	case InputCapture:
		return "capture"
	case InputPCAP:
		return "pcap"
	default:
		return "raw"
	}
}

// DetectInput classifies path by extension and header.
func DetectInput(path string) (InputKind, error) {
	if isPCAP(path) {
		return InputPCAP, nil
	}
	ok, err := isCapture(path)
	if err != nil {
		return InputRaw, errors.WrapCaptureError(err, path)
	}
	if ok {
		return InputCapture, nil
	}
	return InputRaw, nil
}

// decodeFile pushes every telegram of path through pipe. Raw dumps go
// through the frame synchronizer; captures and pcaps are already framed.
func decodeFile(ctx context.Context, path string, reg *message.Registry, pipe *pipeline.Pipeline, showProgress bool) error {
	kind, err := DetectInput(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.WrapCaptureError(err, path)
	}
	defer f.Close()

	var r io.Reader = f
	if showProgress {
		if fi, err := f.Stat(); err == nil {
			bar := progress.NewByteBar(fi.Size(), "Parsing")
			r = progress.NewReader(f, bar)
			defer bar.Finish()
		}
	}

	switch kind {
	case InputPCAP:
		telegrams, err := capture.ImportPCAP(r)
		if err != nil {
			return errors.WrapCaptureError(err, path)
		}
		for _, t := range telegrams {
			if err := ctx.Err(); err != nil {
				return err
			}
			pipe.Process(t)
		}
		return nil

	case InputCapture:
		cr, err := capture.NewReader(r, reg)
		if err != nil {
			return errors.WrapCaptureError(err, path)
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := cr.NextTelegram()
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return errors.WrapCaptureError(err, path)
			}
			pipe.Process(t)
		}

	default:
		return pipe.ReadFrom(ctx, r)
	}
}

// RunParse decodes a raw dump, capture or pcap and displays the messages.
func RunParse(ctx context.Context, env Env, opts ParseOptions) (*metrics.Summary, error) {
	reg, err := env.registry()
	if err != nil {
		return nil, err
	}
	cfg := env.config()
	env.Logger.LogStartup("parse", opts.Path, 0, reg.Name(), env.ConfigPath)

	var out *capture.Writer
	if opts.Output != "" {
		out, err = capture.Create(opts.Output)
		if err != nil {
			return nil, errors.WrapCaptureError(err, opts.Output)
		}
		defer out.Close()
	}

	realtime := opts.Realtime || cfg.Monitor.Realtime
	paced := opts.Replay || opts.Realtime
	var player *replay.Player
	if paced {
		mode := replay.Interval
		if realtime {
			mode = replay.Realtime
		}
		player = replay.New(replay.Options{
			Mode:     mode,
			Interval: time.Duration(cfg.Monitor.ReplayCycleMs) * time.Millisecond,
			Speed:    opts.Speed,
		})
	}

	v := newView(env, opts.Group, "rs485mon "+opts.Path)
	stats := metrics.NewSink()
	pipe, err := pipeline.New(pipeline.Options{
		Registry:  reg,
		Logger:    env.Logger,
		Stats:     stats,
		OnInvalid: func(t *telegram.Telegram) { v.Invalid(t) },
		OnMessage: func(m message.Message) {
			if out != nil {
				if _, err := out.Push(m.Telegram()); err != nil {
					env.Logger.Error("write capture: %v", err)
				}
			}
			if player != nil {
				player.Add(m)
				return
			}
			v.Display(m)
		},
	})
	if err != nil {
		return nil, err
	}

	err = v.run(ctx, func(ctx context.Context) error {
		if err := decodeFile(ctx, opts.Path, reg, pipe, opts.Progress && !opts.Group); err != nil {
			return err
		}
		if player == nil {
			return nil
		}
		v.Status(fmt.Sprintf("replaying %d telegrams (%s)", player.Len(), modeName(realtime)))
		player.Subscribe(v.Display)
		return player.Run(ctx)
	})
	if out != nil {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.WrapCaptureError(cerr, opts.Output)
		}
	}
	if isInterrupt(err) {
		err = nil
	}
	return stats.GetSummary(), err
}

func modeName(realtime bool) string {
	if realtime {
		return replay.Realtime.String()
	}
	return replay.Interval.String()
}
