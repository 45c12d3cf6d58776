package cliconfig

import "os"

// EnvPrefix is the prefix of every environment variable read by ApplyEnvConfig.
const EnvPrefix = "PIKARELAY_"

// ApplyEnvConfig applies configuration from environment variables (PIKARELAY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("password", env("PASSWORD"), &cfg.Password)
	s.setString("input", env("INPUT"), &cfg.Input)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setIntFromString("port", env("PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("id", env("ID"), &cfg.ID); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-capacity", env("QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}

	if err := s.setDuration("connect-timeout", env("CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-interval", env("RETRY_INTERVAL"), &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", env("READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", env("WRITE_TIMEOUT"), &cfg.WriteTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", env("SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBoolFromString("follow", env("FOLLOW"), &cfg.Follow)
	return nil
}
