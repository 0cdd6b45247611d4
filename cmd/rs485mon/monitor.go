package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/bus"
	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/metrics"
)

type monitorFlags struct {
	port       string
	baud       int
	outputDir  string
	profile    string
	listPorts  bool
	group      bool
	write      bool
	writeRaw   bool
	quiet      bool
	eventsCSV  string
	eventsJSON string
	upload     bool
	summary    bool
	natsURL    string
	redisAddr  string
	listen     string
}

func newMonitorCmd(root *rootFlags) *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Decode live traffic from the serial port",
		Long: `Open the configured serial port and decode every telegram on the bus
until interrupted with Ctrl+C.

Telegrams with a bad checksum are counted and dropped. Use --group for a
refreshing table with one row per telegram id, and --write to record the
session as a capture that parse, stats, replay and convert understand.`,
		Example: `  # Log every telegram
  rs485mon monitor --port /dev/ttyUSB0

  # Grouped view, recording a capture and a raw dump
  rs485mon monitor --group --write --write-raw --output-dir captures

  # Forward telegrams to NATS and serve a live WebSocket feed
  rs485mon monitor --nats nats://127.0.0.1:4222 --listen :8485

  # List serial ports
  rs485mon monitor --list-ports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.listPorts {
				return listPorts(cmd)
			}
			return runMonitor(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.port, "port", "", "Serial port (overrides monitor.port)")
	cmd.Flags().IntVar(&flags.baud, "baud", 0, "Baud rate (overrides monitor.baud_rate)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory for captures and raw dumps")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "Decoder profile: default or legacy")
	cmd.Flags().BoolVar(&flags.listPorts, "list-ports", false, "List serial ports and exit")
	cmd.Flags().BoolVar(&flags.group, "group", false, "Show one refreshing row per telegram id")
	cmd.Flags().BoolVarP(&flags.write, "write", "w", false, "Record the session as a capture")
	cmd.Flags().BoolVar(&flags.writeRaw, "write-raw", false, "Also dump the raw serial bytes")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only show a running count")
	cmd.Flags().StringVar(&flags.eventsCSV, "events-csv", "", "Write one CSV row per frame")
	cmd.Flags().StringVar(&flags.eventsJSON, "events-json", "", "Write a JSON array of frame events")
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "Upload the recorded files to monitor.upload_to when done")
	cmd.Flags().BoolVar(&flags.summary, "summary", true, "Print per-id statistics when done")
	cmd.Flags().StringVar(&flags.natsURL, "nats", "", "Publish telegrams to this NATS server (overrides publish.nats_url)")
	cmd.Flags().StringVar(&flags.redisAddr, "redis", "", "Keep per-id shadows in this Redis server (overrides publish.redis_addr)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "Serve live telegrams over HTTP/WebSocket on this address (overrides publish.listen)")

	return cmd
}

func applyBusOverrides(cfg *config.Config, port string, baud int, profile string) {
	if port != "" {
		cfg.Monitor.Port = port
	}
	if baud > 0 {
		cfg.Monitor.BaudRate = baud
	}
	if profile != "" {
		cfg.Monitor.DecoderProfile = profile
	}
}

func runMonitor(cmd *cobra.Command, root *rootFlags, flags *monitorFlags) error {
	if flags.upload && !flags.write && !flags.writeRaw {
		return fmt.Errorf("--upload needs --write or --write-raw")
	}
	env, cleanup, err := root.newEnv(cmd, func(cfg *config.Config) {
		applyBusOverrides(cfg, flags.port, flags.baud, flags.profile)
		if flags.outputDir != "" {
			cfg.Monitor.OutputDir = flags.outputDir
		}
		if flags.writeRaw {
			cfg.Monitor.WriteRawData = true
		}
		if flags.natsURL != "" {
			cfg.Publish.NATSURL = flags.natsURL
		}
		if flags.redisAddr != "" {
			cfg.Publish.RedisAddr = flags.redisAddr
		}
		if flags.listen != "" {
			cfg.Publish.Listen = flags.listen
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := app.RunMonitor(cmd.Context(), env, app.MonitorOptions{
		Group:      flags.group,
		Write:      flags.write,
		Quiet:      flags.quiet,
		EventsCSV:  flags.eventsCSV,
		EventsJSON: flags.eventsJSON,
		Upload:     flags.upload,
	})
	if res != nil {
		out := cmd.OutOrStdout()
		if res.CapturePath != "" {
			fmt.Fprintf(out, "Capture written to: %s (%d telegrams)\n", res.CapturePath, res.Written)
		}
		if res.RawPath != "" {
			fmt.Fprintf(out, "Raw data written to: %s (%d bytes)\n", res.RawPath, res.BytesRead)
		}
		if res.SessionPath != "" {
			fmt.Fprintf(out, "Session written to: %s\n", res.SessionPath)
		}
		if res.Published > 0 {
			fmt.Fprintf(out, "Published %d telegram deliveries\n", res.Published)
		}
		if flags.summary && res.Summary != nil {
			fmt.Fprintf(out, "\n%s", metrics.FormatSummary(res.Summary))
		}
	}
	return err
}

func listPorts(cmd *cobra.Command) error {
	ports, err := bus.ListPorts()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}
