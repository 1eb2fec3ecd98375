// Package config loads tool configuration from a file and SB9600_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/moffa90/go-sb9600/link"
)

// SerialConfig selects the serial adaptor and its line settings.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	BusyLine    string        `mapstructure:"busyLine"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	QuietTime   time.Duration `mapstructure:"quietTime"`
}

// BootstrapConfig controls the bootstrap handshake.
type BootstrapConfig struct {
	Image           string        `mapstructure:"image"`
	Profile         string        `mapstructure:"profile"`
	ProfilesFile    string        `mapstructure:"profilesFile"`
	BootBaud        int           `mapstructure:"bootBaud"`
	ReadyTimeout    time.Duration `mapstructure:"readyTimeout"`
	ResponseTimeout time.Duration `mapstructure:"responseTimeout"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
}

// LumberjackConfig configures the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and outputs. An empty File.Filename logs to
// stdout only.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// ZapLevel parses Level. Matching is case-insensitive and "warning" is
// accepted for "warn".
func (c LoggingConfig) ZapLevel() (zapcore.Level, error) {
	name := strings.ToLower(c.Level)
	if name == "warning" {
		name = "warn"
	}
	return zapcore.ParseLevel(name)
}

// MetricsConfig configures the node-exporter textfile written after a run.
// An empty Textfile disables export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Config is the top-level configuration.
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Load reads configuration from a YAML/TOML/JSON file and the environment.
// If path is empty, SB9600_CONFIG is consulted, then ./sb9600.yaml; a missing
// default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SB9600")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("sb9600")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", link.DefaultBaud)
	v.SetDefault("serial.busyLine", "dtr")
	v.SetDefault("serial.readTimeout", link.DefaultReadTimeout)
	v.SetDefault("serial.quietTime", link.DefaultQuietTime)

	v.SetDefault("bootstrap.image", "")
	v.SetDefault("bootstrap.profile", "waris")
	v.SetDefault("bootstrap.profilesFile", "")
	v.SetDefault("bootstrap.bootBaud", 0)
	v.SetDefault("bootstrap.readyTimeout", "0s")
	v.SetDefault("bootstrap.responseTimeout", "10s")
	v.SetDefault("bootstrap.pollInterval", "10ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.textfile", "")
}

// Validate rejects settings the tools cannot run with.
func (c *Config) Validate() error {
	if _, err := link.ParseBusyLine(c.Serial.BusyLine); err != nil {
		return fmt.Errorf("serial.busyLine: %w", err)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.readTimeout must be positive, got %s", c.Serial.ReadTimeout)
	}
	if c.Bootstrap.PollInterval <= 0 {
		return fmt.Errorf("bootstrap.pollInterval must be positive, got %s", c.Bootstrap.PollInterval)
	}
	if c.Bootstrap.BootBaud < 0 {
		return fmt.Errorf("bootstrap.bootBaud must not be negative, got %d", c.Bootstrap.BootBaud)
	}
	if c.Bootstrap.ReadyTimeout < 0 || c.Bootstrap.ResponseTimeout < 0 {
		return errors.New("bootstrap timeouts must not be negative")
	}
	if _, err := c.Logging.ZapLevel(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// BusyLine returns the parsed serial.busyLine.
func (c *Config) BusyLine() link.BusyLine {
	line, _ := link.ParseBusyLine(c.Serial.BusyLine)
	return line
}
