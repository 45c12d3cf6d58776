package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"PIKARELAY_HOST":             "10.0.0.7",
				"PIKARELAY_PORT":             "9300",
				"PIKARELAY_PASSWORD":         "secret",
				"PIKARELAY_ID":               "3",
				"PIKARELAY_QUEUE_CAPACITY":   "42",
				"PIKARELAY_CONNECT_TIMEOUT":  "2s",
				"PIKARELAY_RETRY_INTERVAL":   "1s",
				"PIKARELAY_READ_TIMEOUT":     "4s",
				"PIKARELAY_WRITE_TIMEOUT":    "5s",
				"PIKARELAY_POLL_INTERVAL":    "10ms",
				"PIKARELAY_SHUTDOWN_TIMEOUT": "1m",
				"PIKARELAY_INPUT":            "/tmp/keys",
				"PIKARELAY_FOLLOW":           "1",
				"PIKARELAY_METRICS_ADDR":     ":9100",
				"PIKARELAY_LOG_LEVEL":        "warn",
				"PIKARELAY_LOG_FORMAT":       "json",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Host:            "10.0.0.7",
				Port:            9300,
				Password:        "secret",
				ID:              3,
				QueueCapacity:   42,
				ConnectTimeout:  2 * time.Second,
				RetryInterval:   time.Second,
				ReadTimeout:     4 * time.Second,
				WriteTimeout:    5 * time.Second,
				PollInterval:    10 * time.Millisecond,
				ShutdownTimeout: time.Minute,
				Input:           "/tmp/keys",
				Follow:          true,
				MetricsAddr:     ":9100",
				LogLevel:        "warn",
				LogFormat:       "json",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"PIKARELAY_HOST":     "env-host",
				"PIKARELAY_PASSWORD": "env-secret",
			},
			changed:  map[string]bool{"host": true},
			initial:  Config{Host: "flag-host"},
			expected: Config{Host: "flag-host", Password: "env-secret"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"PIKARELAY_READ_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"PIKARELAY_PORT": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"PIKARELAY_FOLLOW": "false"},
			changed:  map[string]bool{},
			initial:  Config{Follow: true},
			expected: Config{Follow: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v\nwant %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File > defaults)
func TestConfigPrecedence(t *testing.T) {
	fileConf := FileConfig{
		Host:          "file-host",
		Port:          9300,
		QueueCapacity: 10,
	}

	t.Setenv("PIKARELAY_HOST", "env-host")
	t.Setenv("PIKARELAY_PORT", "9400")

	// Simulate CLI flags
	changed := map[string]bool{"port": true}

	cfg := DefaultConfig()
	cfg.Port = 9500

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Port != 9500 {
		t.Errorf("Port = %v, want 9500 (CLI should win)", cfg.Port)
	}
	if cfg.Host != "env-host" {
		t.Errorf("Host = %v, want env-host (env should override file)", cfg.Host)
	}
	if cfg.QueueCapacity != 10 {
		t.Errorf("QueueCapacity = %v, want 10 (file should override default)", cfg.QueueCapacity)
	}
	if cfg.RetryInterval != 3*time.Second {
		t.Errorf("RetryInterval = %v, want default 3s", cfg.RetryInterval)
	}
}
