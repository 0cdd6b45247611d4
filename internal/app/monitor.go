package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tonylturner/rs485mon/internal/artifact"
	"github.com/tonylturner/rs485mon/internal/bus"
	"github.com/tonylturner/rs485mon/internal/capture"
	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/metrics"
	"github.com/tonylturner/rs485mon/internal/pipeline"
	"github.com/tonylturner/rs485mon/internal/progress"
	"github.com/tonylturner/rs485mon/internal/publish"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

type MonitorOptions struct {
	Group      bool
	Write      bool
	Quiet      bool
	EventsCSV  string
	EventsJSON string
	Upload     bool

	// openPort is replaced in tests.
	openPort func(bus.Config) (bus.Port, error)
	now      func() time.Time
}

// MonitorResult summarises a finished monitoring session.
type MonitorResult struct {
	Summary     *metrics.Summary
	CapturePath string
	RawPath     string
	SessionPath string
	Written     int
	BytesRead   uint64
	Published   int
	LiveAddr    string
}

// RunMonitor reads the configured serial port until ctx ends, decoding
// every telegram. Captures and raw dumps are written to the output
// directory when enabled and uploaded afterwards when requested.
func RunMonitor(ctx context.Context, env Env, opts MonitorOptions) (*MonitorResult, error) {
	cfg := env.config()
	if err := cfg.RequirePort(); err != nil {
		return nil, errors.WrapConfigError(err, env.ConfigPath)
	}
	reg, err := env.registry()
	if err != nil {
		return nil, err
	}
	if opts.openPort == nil {
		opts.openPort = bus.Open
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	port, err := opts.openPort(bus.Config{Port: cfg.Monitor.Port, BaudRate: cfg.Monitor.BaudRate})
	if err != nil {
		return nil, errors.WrapSerialError(err, cfg.Monitor.Port, cfg.Monitor.BaudRate)
	}
	defer port.Close()

	env.Logger.LogStartup("monitor", cfg.Monitor.Port, cfg.Monitor.BaudRate, reg.Name(), env.ConfigPath)

	result := &MonitorResult{}
	started := opts.now()

	var capWriter *capture.Writer
	if opts.Write {
		result.CapturePath = capture.DefaultFileName(cfg.Monitor.OutputDir, started)
		capWriter, err = capture.Create(result.CapturePath)
		if err != nil {
			return nil, errors.WrapCaptureError(err, result.CapturePath)
		}
		defer capWriter.Close()
		env.Logger.Info("Writing capture to %s", result.CapturePath)
	}

	var rawDump io.Writer
	if cfg.Monitor.WriteRawData {
		result.RawPath = bus.RawDumpName(cfg.Monitor.OutputDir, started)
		if dir := filepath.Dir(result.RawPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create output directory: %w", err)
			}
		}
		f, err := os.Create(result.RawPath)
		if err != nil {
			return nil, fmt.Errorf("create raw dump: %w", err)
		}
		defer f.Close()
		rawDump = f
		env.Logger.Info("Writing raw data to %s", result.RawPath)
	}

	// Recorded sessions get a JSON and text sidecar.
	var session *artifact.Session
	if opts.Write || cfg.Monitor.WriteRawData {
		session, err = artifact.NewSession(cfg.Monitor.OutputDir, started)
		if err != nil {
			return nil, err
		}
		session.SetBus(cfg.Monitor.Port, cfg.Monitor.BaudRate, reg.Name())
		session.SetCapture(result.CapturePath)
		session.SetRawDump(result.RawPath)
		session.SetEventsCSV(opts.EventsCSV)
		session.SetEventsJSON(opts.EventsJSON)
		result.SessionPath = session.JSONPath()
	}

	var events *metrics.Writer
	if opts.EventsCSV != "" || opts.EventsJSON != "" {
		events, err = metrics.NewWriter(opts.EventsCSV, opts.EventsJSON)
		if err != nil {
			return nil, err
		}
		defer events.Close()
	}

	var fanout *publish.Fanout
	if cfg.Publish.Enabled() {
		f, srv, err := publish.Open(ctx, cfg.Publish, env.Logger)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if srv != nil {
			result.LiveAddr = srv.Addr()
			defer func() {
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				srv.Shutdown(sctx)
			}()
		}
		fanout = f
	}

	stats := metrics.NewSink()
	v := newView(env, opts.Group, "rs485mon "+cfg.Monitor.Port)

	var counter *progress.Counter
	if opts.Quiet && !opts.Group {
		counter = progress.NewCounter("Monitoring", 500*time.Millisecond)
	}
	var decoded, invalid int64

	pipeOpts := pipeline.Options{
		Registry: reg,
		Logger:   env.Logger,
		Stats:    stats,
		OnInvalid: func(t *telegram.Telegram) {
			invalid++
			v.Invalid(t)
		},
		OnMessage: func(m message.Message) {
			if capWriter != nil {
				if _, err := capWriter.Push(m.Telegram()); err != nil {
					env.Logger.Error("write capture: %v", err)
				}
			}
			if fanout != nil {
				// Failures are logged by the fanout.
				_ = fanout.Send(ctx, m)
			}
			decoded++
			if counter != nil {
				counter.Update(decoded, fmt.Sprintf("%d checksum errors", invalid))
				return
			}
			v.Display(m)
		},
	}
	if events != nil {
		pipeOpts.Events = events
	}
	pipe, err := pipeline.New(pipeOpts)
	if err != nil {
		return nil, err
	}

	mon := &bus.Monitor{Port: port, Feeder: pipe, RawDump: rawDump, Logger: env.Logger}
	runErr := v.run(ctx, func(ctx context.Context) error {
		v.Status("listening on " + cfg.Monitor.Port)
		err := mon.Run(ctx)
		if err != nil && !isInterrupt(err) {
			return errors.WrapSerialError(err, cfg.Monitor.Port, cfg.Monitor.BaudRate)
		}
		return nil
	})
	if counter != nil {
		counter.Finish()
	}

	result.Summary = stats.GetSummary()
	result.BytesRead = mon.BytesRead()
	if fanout != nil {
		result.Published, _ = fanout.Counts()
	}
	if capWriter != nil {
		result.Written = capWriter.Count()
		if err := capWriter.Close(); err != nil && runErr == nil {
			runErr = errors.WrapCaptureError(err, result.CapturePath)
		}
	}
	if session != nil {
		if err := session.Finalize(opts.now(), result.Summary, result.BytesRead, runErr); err != nil {
			env.Logger.Error("write session files: %v", err)
		}
	}
	if runErr != nil {
		return result, runErr
	}

	env.Logger.Info("Monitoring stopped after %s: %d telegrams, %d bytes",
		result.Summary.Duration().Round(time.Millisecond), result.Summary.TotalFrames, result.BytesRead)

	if opts.Upload && cfg.Monitor.UploadTo != "" {
		var files []string
		for _, p := range []string{result.CapturePath, result.RawPath} {
			if p != "" {
				files = append(files, p)
			}
		}
		if session != nil {
			files = append(files, session.Files()...)
		}
		if len(files) > 0 {
			// ctx is usually cancelled by the interrupt that ended monitoring.
			if _, err := RunUpload(context.WithoutCancel(ctx), env, UploadOptions{Destination: cfg.Monitor.UploadTo, Files: files}); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}
