package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config with string durations, for TOML and YAML files.
type FileConfig struct {
	Host            string `toml:"host" yaml:"host"`
	Port            int    `toml:"port" yaml:"port"`
	Password        string `toml:"password" yaml:"password"`
	ID              int    `toml:"id" yaml:"id"`
	QueueCapacity   int    `toml:"queue_capacity" yaml:"queue_capacity"`
	ConnectTimeout  string `toml:"connect_timeout" yaml:"connect_timeout"`
	RetryInterval   string `toml:"retry_interval" yaml:"retry_interval"`
	ReadTimeout     string `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout" yaml:"write_timeout"`
	PollInterval    string `toml:"poll_interval" yaml:"poll_interval"`
	ShutdownTimeout string `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	Input           string `toml:"input" yaml:"input"`
	Follow          *bool  `toml:"follow" yaml:"follow"`
	MetricsAddr     string `toml:"metrics_addr" yaml:"metrics_addr"`
	LogLevel        string `toml:"log_level" yaml:"log_level"`
	LogFormat       string `toml:"log_format" yaml:"log_format"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.pikarelay/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pikarelay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("password", fc.Password, &cfg.Password)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("id", fc.ID, &cfg.ID)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout},
		{"retry-interval", fc.RetryInterval, &cfg.RetryInterval},
		{"read-timeout", fc.ReadTimeout, &cfg.ReadTimeout},
		{"write-timeout", fc.WriteTimeout, &cfg.WriteTimeout},
		{"poll", fc.PollInterval, &cfg.PollInterval},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setBool("follow", fc.Follow, &cfg.Follow)
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
