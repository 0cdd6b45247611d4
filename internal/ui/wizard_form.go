package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/message"
)

// buildWizardForm binds the form fields to opts. ports, when known, turn the
// port question into a selection.
func buildWizardForm(opts *WizardOptions, ports []string) *huh.Form {
	var portField huh.Field
	if len(ports) > 0 {
		options := make([]huh.Option[string], 0, len(ports))
		for _, p := range ports {
			options = append(options, huh.NewOption(p, p))
		}
		if opts.Port == "" || !contains(ports, opts.Port) {
			opts.Port = ports[0]
		}
		portField = huh.NewSelect[string]().
			Title("Serial port").
			Description("RS485 adapter the bus is attached to.").
			Key("port").
			Options(options...).
			Value(&opts.Port)
	} else {
		portField = huh.NewInput().
			Title("Serial port").
			Description("Device path such as /dev/ttyUSB0 or COM3.").
			Key("port").
			Value(&opts.Port)
	}

	busGroup := huh.NewGroup(
		portField,
		huh.NewInput().
			Title("Baud rate").
			Description("Line speed of the bus (default 9600).").
			Key("baud_rate").
			Value(&opts.BaudRate),
		huh.NewSelect[string]().
			Title("Decoder profile").
			Description("default decodes the current firmware, legacy the older status frames.").
			Key("decoder_profile").
			Options(
				huh.NewOption("Default", message.ProfileDefault),
				huh.NewOption("Legacy", message.ProfileLegacy),
			).
			Value(&opts.DecoderProfile),
	)

	outputGroup := huh.NewGroup(
		huh.NewInput().
			Title("Output directory").
			Description("Where captures and raw dumps are written.").
			Key("output_dir").
			Value(&opts.OutputDir),
		huh.NewConfirm().
			Title("Write raw data").
			Description("Also keep an unframed byte dump of the port.").
			Key("write_raw_data").
			Value(&opts.WriteRawData),
		huh.NewInput().
			Title("Upload destination (optional)").
			Description("Directory, ssh://user@host/dir or user@host:dir.").
			Key("upload_to").
			Value(&opts.UploadTo),
	)

	replayGroup := huh.NewGroup(
		huh.NewConfirm().
			Title("Realtime replay").
			Description("Reproduce the recorded timing instead of a fixed cycle.").
			Key("realtime").
			Value(&opts.Realtime),
		huh.NewInput().
			Title("Replay cycle (ms)").
			Description("Fixed gap between replayed telegrams.").
			Key("replay_cycle_ms").
			Value(&opts.ReplayCycleMs),
	).WithHideFunc(func() bool { return opts.Realtime })

	publishGroup := huh.NewGroup(
		huh.NewInput().
			Title("NATS server (optional)").
			Description("Publish every telegram, e.g. nats://127.0.0.1:4222.").
			Key("nats_url").
			Value(&opts.NATSURL),
		huh.NewInput().
			Title("Redis server (optional)").
			Description("Keep the latest telegram per id, e.g. 127.0.0.1:6379.").
			Key("redis_addr").
			Value(&opts.RedisAddr),
		huh.NewInput().
			Title("Live feed address (optional)").
			Description("Serve /ws and /latest over HTTP, e.g. :8485.").
			Key("listen").
			Value(&opts.Listen),
	)

	loggingGroup := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Log level").
			Key("log_level").
			Options(
				huh.NewOption("Error", "error"),
				huh.NewOption("Info", "info"),
				huh.NewOption("Verbose", "verbose"),
				huh.NewOption("Debug", "debug"),
			).
			Value(&opts.LogLevel),
		huh.NewInput().
			Title("Log file (optional)").
			Key("log_file").
			Value(&opts.LogFile),
	)

	return huh.NewForm(busGroup, outputGroup, replayGroup, publishGroup, loggingGroup)
}

// runForm is replaced in tests.
var runForm = func(f *huh.Form) error { return f.Run() }

// RunWizard asks for the configuration, starting from current, and writes
// the result to path.
func RunWizard(path string, current *config.Config, ports []string) (*config.Config, error) {
	opts := DefaultWizardOptions(current)
	form := buildWizardForm(&opts, ports)
	if err := runForm(form); err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}

	cfg, err := BuildWizardConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := config.WriteConfig(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
