package relay

import (
	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/ports"
	"github.com/bft-labs/pikarelay/pkg/log"
)

// Dialer opens sessions to the destination store.
// The default dials TCP and speaks RESP.
type Dialer = ports.Dialer

// Conn is one session to the destination store.
type Conn = ports.Conn

// ReplyError is an error reply sent by the store.
// A Conn returns it, unwrapped, for "-ERR ..." style replies.
type ReplyError = domain.ReplyError

// Errors returned by a Sender.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAuthFailed      = domain.ErrAuthFailed
	ErrAuthRequired    = domain.ErrAuthRequired
	ErrEmptyCommand    = domain.ErrEmptyCommand
)

// Option configures optional behavior of a Sender.
type Option func(*options)

type options struct {
	logger       log.Logger
	dialer       Dialer
	eventHandler EventHandler
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialer replaces the TCP dialer, typically with a fake in tests.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithEventHandler sets a handler for sender events.
// Events are called synchronously from the worker goroutine.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
