package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
)

func newConvertCmd(root *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert between captures and pcap",
		Long: `Convert a capture to pcap (link type USER0) for Wireshark or gopacket
tooling, or a pcap written by this command back into a capture.`,
		Example: `  rs485mon convert session.ssm -o session.pcap
  rs485mon convert session.pcap -o session.ssm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return missingArgError(cmd, "<input>")
			}
			if output == "" {
				return missingFlagError(cmd, "--output")
			}

			env, cleanup, err := root.newEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := app.RunConvert(env, app.ConvertOptions{Input: args[0], Output: output})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d telegrams to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (required)")
	return cmd
}
