package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tonylturner/rs485mon/internal/bus"
	"github.com/tonylturner/rs485mon/internal/capture"
	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/progress"
	"github.com/tonylturner/rs485mon/internal/replay"
)

// ReplayOptions plays a capture back onto the serial bus.
type ReplayOptions struct {
	Path     string
	Realtime bool
	Speed    float64
	Interval time.Duration
	Progress bool
	// Echo also prints every frame as it is sent.
	Echo bool

	openPort func(bus.Config) (bus.Port, error)
}

// RunReplay writes every telegram of a capture to the configured port and
// returns the number of frames sent.
func RunReplay(ctx context.Context, env Env, opts ReplayOptions) (int, error) {
	cfg := env.config()
	if err := cfg.RequirePort(); err != nil {
		return 0, errors.WrapConfigError(err, env.ConfigPath)
	}
	reg, err := env.registry()
	if err != nil {
		return 0, err
	}

	r, err := capture.Open(opts.Path, reg)
	if err != nil {
		return 0, errors.WrapCaptureError(err, opts.Path)
	}
	messages, err := r.ReadAll()
	r.Close()
	if err != nil {
		return 0, errors.WrapCaptureError(err, opts.Path)
	}
	if n := r.Skipped(); n > 0 {
		env.Logger.Info("Skipped %d records with a bad checksum in %s", n, opts.Path)
	}

	if opts.openPort == nil {
		opts.openPort = bus.Open
	}
	port, err := opts.openPort(bus.Config{Port: cfg.Monitor.Port, BaudRate: cfg.Monitor.BaudRate})
	if err != nil {
		return 0, errors.WrapSerialError(err, cfg.Monitor.Port, cfg.Monitor.BaudRate)
	}
	defer port.Close()

	mode := replay.Interval
	if opts.Realtime || cfg.Monitor.Realtime {
		mode = replay.Realtime
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Duration(cfg.Monitor.ReplayCycleMs) * time.Millisecond
	}
	player := replay.New(replay.Options{Mode: mode, Interval: interval, Speed: opts.Speed})
	for _, m := range messages {
		player.Add(m)
	}
	env.Logger.LogStartup("replay", cfg.Monitor.Port, cfg.Monitor.BaudRate, reg.Name(), env.ConfigPath)
	env.Logger.Info("Replaying %d telegrams from %s (%s)", player.Len(), opts.Path, mode)

	sim := bus.NewSimulator(port, env.Logger)
	var bar *progress.Bar
	if opts.Progress {
		bar = progress.NewBar(int64(player.Len()), "Replaying")
	}
	var echo *view
	if opts.Echo {
		echo = newView(env, false, "")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	player.Subscribe(func(m message.Message) {
		sim.Send(m)
		if sim.Err() != nil {
			cancel()
			return
		}
		if bar != nil {
			bar.Increment()
		}
		if echo != nil {
			echo.Display(m)
		}
	})

	runErr := player.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if echo != nil {
		echo.printer.Flush()
	}
	if err := sim.Err(); err != nil {
		return sim.Sent(), errors.WrapSerialError(err, cfg.Monitor.Port, cfg.Monitor.BaudRate)
	}
	if runErr != nil && !isInterrupt(runErr) {
		return sim.Sent(), fmt.Errorf("replay: %w", runErr)
	}
	env.Logger.Info("Sent %d of %d telegrams", sim.Sent(), len(messages))
	return sim.Sent(), nil
}
