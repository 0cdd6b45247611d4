package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tonylturner/rs485mon/internal/app"
	"github.com/tonylturner/rs485mon/internal/config"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

// resolveConfigPath returns the file to read and whether it must exist.
func (f *rootFlags) resolveConfigPath() (string, bool) {
	if f.configPath != "" {
		return f.configPath, true
	}
	return config.DefaultPath, false
}

// loadConfig reads the configuration. Without --config a missing
// rs485mon.yaml falls back to the defaults.
func (f *rootFlags) loadConfig() (*config.Config, string, error) {
	path, required := f.resolveConfigPath()
	if !required {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.CreateDefaultConfig(), "", nil
		}
	}
	cfg, err := config.LoadConfig(path, false)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newEnv loads the configuration, lets override adjust it and builds the
// logger. The returned cleanup closes the log file.
func (f *rootFlags) newEnv(cmd *cobra.Command, override func(*config.Config)) (app.Env, func(), error) {
	cfg, path, err := f.loadConfig()
	if err != nil {
		return app.Env{}, func() {}, err
	}
	if override != nil {
		override(cfg)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return app.Env{}, func() {}, err
	}
	logger, err := app.NewLogger(cfg, f.logLevel)
	if err != nil {
		return app.Env{}, func() {}, err
	}
	logger.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	env := app.Env{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Out:        cmd.OutOrStdout(),
	}
	return env, func() { logger.Close() }, nil
}
