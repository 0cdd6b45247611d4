// Package ui holds the interactive configuration wizard.
package ui

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/transport"
)

// WizardOptions carries the answers of the configuration wizard. Empty
// fields fall back to the defaults.
type WizardOptions struct {
	Port           string
	BaudRate       string
	OutputDir      string
	WriteRawData   bool
	Realtime       bool
	ReplayCycleMs  string
	DecoderProfile string
	UploadTo       string
	NATSURL        string
	RedisAddr      string
	Listen         string
	LogLevel       string
	LogFile        string
}

// DefaultWizardOptions mirrors cfg so the form opens with current values.
func DefaultWizardOptions(cfg *config.Config) WizardOptions {
	if cfg == nil {
		cfg = config.CreateDefaultConfig()
	}
	return WizardOptions{
		Port:           cfg.Monitor.Port,
		BaudRate:       strconv.Itoa(cfg.Monitor.BaudRate),
		OutputDir:      cfg.Monitor.OutputDir,
		WriteRawData:   cfg.Monitor.WriteRawData,
		Realtime:       cfg.Monitor.Realtime,
		ReplayCycleMs:  strconv.Itoa(cfg.Monitor.ReplayCycleMs),
		DecoderProfile: cfg.Monitor.DecoderProfile,
		UploadTo:       cfg.Monitor.UploadTo,
		NATSURL:        cfg.Publish.NATSURL,
		RedisAddr:      cfg.Publish.RedisAddr,
		Listen:         cfg.Publish.Listen,
		LogLevel:       cfg.Logging.Level,
		LogFile:        cfg.Logging.File,
	}
}

// BuildWizardConfig turns wizard answers into a validated configuration.
func BuildWizardConfig(opts WizardOptions) (*config.Config, error) {
	cfg := config.CreateDefaultConfig()

	if port := strings.TrimSpace(opts.Port); port != "" {
		cfg.Monitor.Port = port
	}
	if err := cfg.RequirePort(); err != nil {
		return nil, err
	}

	baud, err := parsePositive("baud rate", opts.BaudRate)
	if err != nil {
		return nil, err
	}
	if baud > 0 {
		cfg.Monitor.BaudRate = baud
	}
	cycle, err := parsePositive("replay cycle", opts.ReplayCycleMs)
	if err != nil {
		return nil, err
	}
	if cycle > 0 {
		cfg.Monitor.ReplayCycleMs = cycle
	}

	cfg.Monitor.OutputDir = strings.TrimSpace(opts.OutputDir)
	cfg.Monitor.WriteRawData = opts.WriteRawData
	cfg.Monitor.Realtime = opts.Realtime
	if p := strings.TrimSpace(opts.DecoderProfile); p != "" {
		cfg.Monitor.DecoderProfile = p
	}

	if dest := strings.TrimSpace(opts.UploadTo); dest != "" {
		if _, err := transport.Parse(dest); err != nil {
			return nil, fmt.Errorf("upload destination: %w", err)
		}
		cfg.Monitor.UploadTo = dest
	}

	cfg.Publish.NATSURL = strings.TrimSpace(opts.NATSURL)
	cfg.Publish.RedisAddr = strings.TrimSpace(opts.RedisAddr)
	for name, addr := range map[string]string{"redis address": cfg.Publish.RedisAddr, "listen address": strings.TrimSpace(opts.Listen)} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	cfg.Publish.Listen = strings.TrimSpace(opts.Listen)

	if lvl := strings.TrimSpace(opts.LogLevel); lvl != "" {
		cfg.Logging.Level = lvl
	}
	cfg.Logging.File = strings.TrimSpace(opts.LogFile)

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parsePositive(name, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", name, value)
	}
	return n, nil
}
