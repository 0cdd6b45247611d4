package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// handleHelpArg lets "rs485mon parse help" behave like --help.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) > 0 && strings.EqualFold(args[0], "help") {
		_ = cmd.Help()
		return true
	}
	return false
}

// usageError prints the command usage and reports what was missing.
func usageError(cmd *cobra.Command, kind, name string) error {
	_ = cmd.Help()
	return fmt.Errorf("required %s %s not set", kind, name)
}

func missingArgError(cmd *cobra.Command, what string) error {
	return usageError(cmd, "argument", what)
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	return usageError(cmd, "flag", flag)
}
