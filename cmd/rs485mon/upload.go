package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/transport"
)

func newUploadCmd(root *rootFlags) *cobra.Command {
	var (
		to        string
		retries   int
		timeout   time.Duration
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Copy captures to an archive directory or SSH host",
		Long: `Copy captures and raw dumps to a local directory or over SFTP.

Destinations:
  /srv/archive                       local directory
  ssh://user@host:22/srv/archive     SFTP (agent, ?key=/path or known_hosts options)
  user@host:/srv/archive             scp style

Files are written under a temporary name and renamed when complete. A
file already archived with the same size is skipped unless --overwrite is
given. Without --to the monitor.upload_to setting is used.`,
		Example: `  rs485mon upload captures/*.ssm --to pi@logger.local:/srv/rs485`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) == 0 {
				return missingArgError(cmd, "<file>")
			}

			env, cleanup, err := root.newEnv(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := transport.DefaultOptions()
			if retries >= 0 {
				opts.RetryAttempts = retries
			}
			if timeout > 0 {
				opts.Timeout = timeout
			}
			opts.Overwrite = overwrite
			rep, err := app.RunUpload(cmd.Context(), env, app.UploadOptions{
				Destination: to,
				Files:       args,
				Transport:   opts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d files (%d bytes), %d already archived\n",
				len(rep.Stored), rep.Bytes, len(rep.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Destination (overrides monitor.upload_to)")
	cmd.Flags().IntVar(&retries, "retries", -1, "Retries per file (default 3)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall transfer timeout (default 5m)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Upload even when a same-sized copy exists")
	return cmd
}
