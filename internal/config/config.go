package config

// Configuration loading and validation for rs485mon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
)

// DefaultPath is used when --config is not given.
const DefaultPath = "rs485mon.yaml"

const (
	DefaultBaudRate      = 9600
	DefaultReplayCycleMs = 5
	DefaultNATSSubject   = "rs485"
	DefaultRedisPrefix   = "rs485"
	DefaultRedisTTL      = 300
)

// Config is the top level configuration file. Files ending in .toml are
// read and written as TOML, everything else as YAML.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor" toml:"monitor"`
	Publish PublishConfig `yaml:"publish" toml:"publish"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// MonitorConfig describes the bus connection and capture output.
type MonitorConfig struct {
	Port           string `yaml:"port" toml:"port"`
	BaudRate       int    `yaml:"baud_rate" toml:"baud_rate"`
	WriteRawData   bool   `yaml:"write_raw_data" toml:"write_raw_data"`
	OutputDir      string `yaml:"output_dir" toml:"output_dir"`
	ReplayCycleMs  int    `yaml:"replay_cycle_ms" toml:"replay_cycle_ms"`
	Realtime       bool   `yaml:"realtime" toml:"realtime"`
	DecoderProfile string `yaml:"decoder_profile" toml:"decoder_profile"`
	UploadTo       string `yaml:"upload_to,omitempty" toml:"upload_to,omitempty"`
}

// PublishConfig selects where live telegrams are forwarded. Every target
// is off while its address is empty.
type PublishConfig struct {
	NATSURL     string `yaml:"nats_url,omitempty" toml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject" toml:"nats_subject"`
	RedisAddr   string `yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty"`
	RedisPrefix string `yaml:"redis_prefix" toml:"redis_prefix"`
	RedisTTL    int    `yaml:"redis_ttl_seconds" toml:"redis_ttl_seconds"`
	Listen      string `yaml:"listen,omitempty" toml:"listen,omitempty"`
}

// Enabled reports whether any target is configured.
func (p PublishConfig) Enabled() bool {
	return p.NATSURL != "" || p.RedisAddr != "" || p.Listen != ""
}

// LoggingConfig mirrors the logging package options.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	File   string `yaml:"file" toml:"file"`
	Format string `yaml:"format" toml:"format"`
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Marshal encodes cfg in the format implied by path.
func Marshal(path string, cfg *Config) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse TOML: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}
	return nil
}

// CreateDefaultConfig returns the configuration written by WriteDefaultConfig.
func CreateDefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Port:           defaultPort(),
			BaudRate:       DefaultBaudRate,
			ReplayCycleMs:  DefaultReplayCycleMs,
			DecoderProfile: message.ProfileDefault,
		},
		Publish: PublishConfig{
			NATSSubject: DefaultNATSSubject,
			RedisPrefix: DefaultRedisPrefix,
			RedisTTL:    DefaultRedisTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultPort() string {
	if filepath.Separator == '\\' {
		return "COM1"
	}
	return "/dev/ttyUSB0"
}

// WriteDefaultConfig writes the default configuration to path.
func WriteDefaultConfig(path string) error {
	return WriteConfig(path, CreateDefaultConfig())
}

// WriteConfig marshals cfg to path, creating parent directories.
func WriteConfig(path string, cfg *Config) error {
	data, err := Marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig reads path, applies defaults and validates the result. With
// autoCreate a missing file is replaced by the defaults.
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !autoCreate {
				return nil, errors.WrapConfigError(
					fmt.Errorf("config file not found: %s", path),
					path,
				)
			}
			if err := WriteDefaultConfig(path); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, errors.WrapConfigError(
					fmt.Errorf("read created config file: %w", err),
					path,
				)
			}
		} else {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
	}

	var cfg Config
	if err := unmarshal(path, data, &cfg); err != nil {
		return nil, errors.WrapConfigError(err, path)
	}

	ApplyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *Config) {
	if cfg.Monitor.BaudRate == 0 {
		cfg.Monitor.BaudRate = DefaultBaudRate
	}
	if cfg.Monitor.ReplayCycleMs == 0 {
		cfg.Monitor.ReplayCycleMs = DefaultReplayCycleMs
	}
	if cfg.Monitor.DecoderProfile == "" {
		cfg.Monitor.DecoderProfile = message.ProfileDefault
	}
	if cfg.Publish.NATSSubject == "" {
		cfg.Publish.NATSSubject = DefaultNATSSubject
	}
	if cfg.Publish.RedisPrefix == "" {
		cfg.Publish.RedisPrefix = DefaultRedisPrefix
	}
	if cfg.Publish.RedisTTL == 0 {
		cfg.Publish.RedisTTL = DefaultRedisTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// ValidateConfig checks value ranges. The serial port is checked by the
// commands that open it.
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.Monitor.BaudRate < 0 {
		problems = append(problems, fmt.Sprintf("monitor.baud_rate must be positive, got %d", cfg.Monitor.BaudRate))
	}
	if cfg.Monitor.ReplayCycleMs < 0 {
		problems = append(problems, fmt.Sprintf("monitor.replay_cycle_ms must not be negative, got %d", cfg.Monitor.ReplayCycleMs))
	}
	if _, err := message.ForProfile(cfg.Monitor.DecoderProfile); err != nil {
		problems = append(problems, "monitor.decoder_profile: "+err.Error())
	}
	if cfg.Publish.RedisTTL < 0 {
		problems = append(problems, fmt.Sprintf("publish.redis_ttl_seconds must not be negative, got %d", cfg.Publish.RedisTTL))
	}
	if strings.ContainsAny(cfg.Publish.NATSSubject, " *>") {
		problems = append(problems, fmt.Sprintf("publish.nats_subject must be a plain subject, got %q", cfg.Publish.NATSSubject))
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		problems = append(problems, "logging.level: "+err.Error())
	}
	if cfg.Logging.Format != "" && cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		problems = append(problems, fmt.Sprintf("logging.format must be text or json, got %q", cfg.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// RequirePort reports a missing serial port.
func (c *Config) RequirePort() error {
	if strings.TrimSpace(c.Monitor.Port) == "" {
		return fmt.Errorf("monitor.port is required")
	}
	return nil
}
