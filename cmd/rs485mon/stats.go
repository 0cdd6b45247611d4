package main

import (
	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/config"
)

func newStatsCmd(root *rootFlags) *cobra.Command {
	var (
		format  string
		profile string
	)

	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Per-id bus statistics",
		Long: `Report frame counts, decode outcomes and inter-telegram gaps per id for a
capture, pcap, raw dump or an events CSV written by 'monitor --events-csv'.`,
		Example: `  rs485mon stats session.ssm
  rs485mon stats events.csv --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return missingArgError(cmd, "<file>")
			}

			env, cleanup, err := root.newEnv(cmd, func(cfg *config.Config) {
				applyBusOverrides(cfg, "", 0, profile)
			})
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = app.RunStats(cmd.Context(), env, app.StatsOptions{Path: args[0], Format: format})
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, csv or json")
	cmd.Flags().StringVar(&profile, "profile", "", "Decoder profile: default or legacy")
	return cmd
}
