package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/bus"
	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/ui"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show or edit the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(root))
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigEditCmd(root))
	return cmd
}

func newConfigInitCmd(root *rootFlags) *cobra.Command {
	var (
		defaults bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file with a wizard",
		Long: `Ask for the serial port, decoder profile and output settings and write
them to the configuration file. --defaults skips the questions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := root.resolveConfigPath()
			_, statErr := os.Stat(path)
			exists := statErr == nil
			if exists && !force && defaults {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}

			if defaults {
				if err := config.WriteDefaultConfig(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
				return nil
			}

			var current *config.Config
			if exists {
				cfg, err := config.LoadConfig(path, false)
				if err != nil {
					return err
				}
				current = cfg
			}
			ports, _ := bus.ListPorts()
			if _, err := ui.RunWizard(path, current, ports); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "Write the defaults without asking")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file with --defaults")
	return cmd
}

func newConfigShowCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.loadConfig()
			if err != nil {
				return err
			}
			data, err := config.Marshal(path, cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintln(out, "# defaults (no configuration file)")
			} else {
				fmt.Fprintf(out, "# %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigEditCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the configuration file in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := root.resolveConfigPath()
			if err := ui.EditConfig(path); err != nil {
				return err
			}
			if _, err := config.LoadConfig(path, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}
