package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/config"
)

type replayFlags struct {
	port       string
	baud       int
	realtime   bool
	speed      float64
	intervalMs int
	progress   bool
	echo       bool
}

func newReplayCmd(root *rootFlags) *cobra.Command {
	flags := &replayFlags{}

	cmd := &cobra.Command{
		Use:   "replay <capture>",
		Short: "Send a capture back onto the bus",
		Long: `Write every telegram of a capture to the serial port, either at a fixed
cycle (monitor.replay_cycle_ms, default 5ms) or with the recorded timing.
Useful to drive a device under test without the rest of the vehicle.`,
		Example: `  rs485mon replay session.ssm --port /dev/ttyUSB1
  rs485mon replay session.ssm --realtime --speed 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return missingArgError(cmd, "<capture>")
			}
			return runReplay(cmd, root, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.port, "port", "", "Serial port (overrides monitor.port)")
	cmd.Flags().IntVar(&flags.baud, "baud", 0, "Baud rate (overrides monitor.baud_rate)")
	cmd.Flags().BoolVar(&flags.realtime, "realtime", false, "Reproduce the recorded timing")
	cmd.Flags().Float64Var(&flags.speed, "speed", 1, "Realtime speed factor")
	cmd.Flags().IntVar(&flags.intervalMs, "interval-ms", 0, "Fixed gap between telegrams (overrides monitor.replay_cycle_ms)")
	cmd.Flags().BoolVar(&flags.progress, "progress", true, "Show a progress bar on stderr")
	cmd.Flags().BoolVar(&flags.echo, "echo", false, "Print every telegram as it is sent")

	return cmd
}

func runReplay(cmd *cobra.Command, root *rootFlags, flags *replayFlags, path string) error {
	if flags.speed <= 0 {
		return fmt.Errorf("--speed must be positive")
	}
	env, cleanup, err := root.newEnv(cmd, func(cfg *config.Config) {
		applyBusOverrides(cfg, flags.port, flags.baud, "")
	})
	if err != nil {
		return err
	}
	defer cleanup()

	sent, err := app.RunReplay(cmd.Context(), env, app.ReplayOptions{
		Path:     path,
		Realtime: flags.realtime,
		Speed:    flags.speed,
		Interval: time.Duration(flags.intervalMs) * time.Millisecond,
		Progress: flags.progress,
		Echo:     flags.echo,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d telegrams\n", sent)
	return nil
}
