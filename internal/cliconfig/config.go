package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/pikarelay/pkg/log"
	"github.com/bft-labs/pikarelay/pkg/relay"
)

// StdinInput is the Input value that reads commands from standard input.
const StdinInput = "-"

// Log formats accepted by Config.LogFormat.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config holds CLI configuration for pikarelay.
type Config struct {
	Host     string
	Port     int
	Password string
	ID       int

	QueueCapacity   int
	ConnectTimeout  time.Duration
	RetryInterval   time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PollInterval    time.Duration
	ShutdownTimeout time.Duration

	Input  string
	Follow bool

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:            relay.DefaultHost,
		Port:            relay.DefaultPort,
		QueueCapacity:   relay.DefaultQueueCapacity,
		ConnectTimeout:  relay.DefaultConnectTimeout,
		RetryInterval:   relay.DefaultRetryInterval,
		ReadTimeout:     relay.DefaultReadTimeout,
		WriteTimeout:    relay.DefaultWriteTimeout,
		PollInterval:    relay.DefaultPollInterval,
		ShutdownTimeout: 30 * time.Second,
		Input:           StdinInput,
		LogLevel:        "info",
		LogFormat:       LogFormatConsole,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.ConnectTimeout <= 0 || c.RetryInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("connect timeout, retry interval and poll interval must be positive")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.Input == "" {
		c.Input = StdinInput
	}
	if c.Follow && c.Input == StdinInput {
		return fmt.Errorf("follow needs an input file")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// RelayConfig returns the sender configuration.
func (c Config) RelayConfig() relay.Config {
	return relay.Config{
		ID:             c.ID,
		Host:           c.Host,
		Port:           c.Port,
		Password:       c.Password,
		QueueCapacity:  c.QueueCapacity,
		ConnectTimeout: c.ConnectTimeout,
		RetryInterval:  c.RetryInterval,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		PollInterval:   c.PollInterval,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
