package relay

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/bft-labs/pikarelay/internal/app"
	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/queue"
)

// Default configuration values.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 9221
	DefaultQueueCapacity  = queue.DefaultCapacity
	DefaultConnectTimeout = time.Second
	DefaultRetryInterval  = app.DefaultRetryInterval
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultPollInterval   = queue.DefaultPollInterval
)

// Config holds the configuration of one Sender.
type Config struct {
	// ID identifies the sender in logs and events.
	ID int

	// Host and Port address the destination store.
	Host string
	Port int

	// Password is sent with AUTH after every connect. Empty means none.
	Password string

	// QueueCapacity is the queue size at which producers start to block.
	QueueCapacity int

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration

	// RetryInterval is the pause between failed connect attempts.
	RetryInterval time.Duration

	// ReadTimeout and WriteTimeout bound each reply and each request.
	// They also bound how long Shutdown waits for an in-flight command
	// after its context ends, so both must be positive.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PollInterval bounds every wait on the queue.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		QueueCapacity:  DefaultQueueCapacity,
		ConnectTimeout: DefaultConnectTimeout,
		RetryInterval:  DefaultRetryInterval,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", domain.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive", domain.ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive", domain.ErrInvalidConfig)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: read and write timeouts must be positive", domain.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// Addr returns the destination as "host:port".
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
