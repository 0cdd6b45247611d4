package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/metrics"
)

type parseFlags struct {
	profile  string
	group    bool
	replay   bool
	realtime bool
	speed    float64
	output   string
	progress bool
	summary  bool
}

func newParseCmd(root *rootFlags) *cobra.Command {
	flags := &parseFlags{}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Decode a capture, pcap or raw dump",
		Long: `Decode a recorded session. The format is detected from the file:
captures written by 'monitor --write', pcaps written by 'convert', and raw
serial dumps written by 'monitor --write-raw'.

With --replay the telegrams are shown at the configured replay cycle;
--realtime reproduces the recorded timing instead.`,
		Example: `  rs485mon parse captures/20240301_100000_telegram.ssm
  rs485mon parse --group --realtime session.ssm
  rs485mon parse raw_20240301_100000.bin --output decoded.ssm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return missingArgError(cmd, "<file>")
			}
			return runParse(cmd, root, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.profile, "profile", "", "Decoder profile: default or legacy")
	cmd.Flags().BoolVar(&flags.group, "group", false, "Show one refreshing row per telegram id")
	cmd.Flags().BoolVar(&flags.replay, "replay", false, "Pace output at monitor.replay_cycle_ms")
	cmd.Flags().BoolVar(&flags.realtime, "realtime", false, "Pace output with the recorded timing")
	cmd.Flags().Float64Var(&flags.speed, "speed", 1, "Realtime speed factor")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write accepted telegrams to this capture")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().BoolVar(&flags.summary, "summary", false, "Print per-id statistics when done")

	return cmd
}

func runParse(cmd *cobra.Command, root *rootFlags, flags *parseFlags, path string) error {
	env, cleanup, err := root.newEnv(cmd, func(cfg *config.Config) {
		applyBusOverrides(cfg, "", 0, flags.profile)
	})
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := app.RunParse(cmd.Context(), env, app.ParseOptions{
		Path:     path,
		Group:    flags.group,
		Replay:   flags.replay,
		Realtime: flags.realtime,
		Speed:    flags.speed,
		Output:   flags.output,
		Progress: flags.progress,
	})
	if err != nil {
		return err
	}
	if flags.summary && summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s", metrics.FormatSummary(summary))
	}
	return nil
}
