// Package config loads the daemon configuration. Every key is optional in
// the JSON file; the Get* accessors supply the defaults for unset keys.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/eps.report/internal/eps"
	"github.com/banshee-data/eps.report/internal/serialmux"
)

// DefaultConfigPath is the path to the example configuration shipped with the repo.
const DefaultConfigPath = "config/eps.defaults.json"

// Telegram sources.
const (
	SourceSerial = "serial"
	SourceReplay = "replay"
	SourceNone   = "none"
)

// Config is the root daemon configuration.
type Config struct {
	// Engine params
	Threshold      *int `json:"threshold,omitempty"`
	RefreshRate    *int `json:"refresh_rate,omitempty"`    // samples buffered before draining
	TelegramFormat *int `json:"telegram_format,omitempty"` // 3 or 4 fields

	EvalInterval  *string `json:"eval_interval,omitempty"` // duration string like "1s"
	DisplayJitter *bool   `json:"display_jitter,omitempty"`

	// Source params
	Source         *string                `json:"source,omitempty"`
	SerialPort     *string                `json:"serial_port,omitempty"`
	Serial         *serialmux.PortOptions `json:"serial,omitempty"`
	ReplayFile     *string                `json:"replay_file,omitempty"`
	ReplayInterval *string                `json:"replay_interval,omitempty"` // duration string like "10ms"
	QueueSize      *int                   `json:"queue_size,omitempty"`

	// Persistence and serving
	DBPath         *string `json:"db_path,omitempty"`
	Listen         *string `json:"listen,omitempty"`
	RestoreSession *bool   `json:"restore_session,omitempty"`
	LogFile        *string `json:"log_file,omitempty"`
}

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be at most 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.RefreshRate != nil && *c.RefreshRate <= 0 {
		return fmt.Errorf("refresh_rate must be positive, got %d", *c.RefreshRate)
	}

	if c.TelegramFormat != nil && !eps.TelegramFormat(*c.TelegramFormat).Valid() {
		return fmt.Errorf("telegram_format must be 3 or 4, got %d", *c.TelegramFormat)
	}

	if c.Threshold != nil && (*c.Threshold < eps.AngleMin || *c.Threshold > eps.AngleMax) {
		return fmt.Errorf("threshold must be within the angle range [%g, %g], got %d", eps.AngleMin, eps.AngleMax, *c.Threshold)
	}

	if c.EvalInterval != nil && *c.EvalInterval != "" {
		d, err := time.ParseDuration(*c.EvalInterval)
		if err != nil {
			return fmt.Errorf("invalid eval_interval '%s': %w", *c.EvalInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("eval_interval must be positive, got %s", d)
		}
	}

	if c.ReplayInterval != nil && *c.ReplayInterval != "" {
		if _, err := time.ParseDuration(*c.ReplayInterval); err != nil {
			return fmt.Errorf("invalid replay_interval '%s': %w", *c.ReplayInterval, err)
		}
	}

	if c.QueueSize != nil && *c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", *c.QueueSize)
	}

	switch c.GetSource() {
	case SourceSerial, SourceNone:
	case SourceReplay:
		if c.GetReplayFile() == "" {
			return fmt.Errorf("source %q requires replay_file", SourceReplay)
		}
	default:
		return fmt.Errorf("unknown source %q: expected %s, %s or %s", c.GetSource(), SourceSerial, SourceReplay, SourceNone)
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}

	return nil
}

// GetThreshold returns the threshold value or the default.
func (c *Config) GetThreshold() int {
	if c.Threshold == nil {
		return eps.DefaultThreshold
	}
	return *c.Threshold
}

// GetRefreshRate returns the refresh_rate value or the default.
func (c *Config) GetRefreshRate() int {
	if c.RefreshRate == nil {
		return 500
	}
	return *c.RefreshRate
}

// GetTelegramFormat returns the telegram_format value or the default.
func (c *Config) GetTelegramFormat() eps.TelegramFormat {
	if c.TelegramFormat == nil {
		return eps.Format3Field
	}
	return eps.TelegramFormat(*c.TelegramFormat)
}

// GetEvalInterval parses and returns the EvalInterval as a time.Duration.
func (c *Config) GetEvalInterval() time.Duration {
	if c.EvalInterval == nil || *c.EvalInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.EvalInterval)
	if err != nil || d <= 0 {
		return time.Second // default on parse error
	}
	return d
}

// GetDisplayJitter returns the display_jitter value or the default.
func (c *Config) GetDisplayJitter() bool {
	if c.DisplayJitter == nil {
		return false
	}
	return *c.DisplayJitter
}

// GetSource returns the source value or the default.
func (c *Config) GetSource() string {
	if c.Source == nil || *c.Source == "" {
		return SourceSerial
	}
	return *c.Source
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyS0"
	}
	return *c.SerialPort
}

// GetSerialOptions returns the serial options with defaults applied.
func (c *Config) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalized, err := opts.Normalise()
	if err != nil {
		return serialmux.PortOptions{}
	}
	return normalized
}

// GetReplayFile returns the replay_file value or the default.
func (c *Config) GetReplayFile() string {
	if c.ReplayFile == nil {
		return ""
	}
	return *c.ReplayFile
}

// GetReplayInterval parses and returns the ReplayInterval as a time.Duration.
func (c *Config) GetReplayInterval() time.Duration {
	if c.ReplayInterval == nil || *c.ReplayInterval == "" {
		return 10 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ReplayInterval)
	if err != nil {
		return 10 * time.Millisecond // default on parse error
	}
	return d
}

// GetQueueSize returns the queue_size value or the default.
func (c *Config) GetQueueSize() int {
	if c.QueueSize == nil {
		return 256
	}
	return *c.QueueSize
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "eps_data.db"
	}
	return *c.DBPath
}

// GetListen returns the listen value or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetRestoreSession returns the restore_session value or the default.
func (c *Config) GetRestoreSession() bool {
	if c.RestoreSession == nil {
		return false
	}
	return *c.RestoreSession
}

// GetLogFile returns the log_file value or the default (no file).
func (c *Config) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}
