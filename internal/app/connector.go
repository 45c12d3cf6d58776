package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/ports"
	"github.com/bft-labs/pikarelay/pkg/log"
)

// ConnectEventEmitter is notified of connection outcomes.
type ConnectEventEmitter interface {
	OnConnect(addr string, attempts int)
	OnConnectError(err error, fatal bool)
}

// Connector establishes authenticated sessions to the destination store.
type Connector struct {
	addr     string
	password string
	dialer   ports.Dialer
	backoff  *Backoff
	logger   log.Logger
	emitter  ConnectEventEmitter
}

// NewConnector creates a connector. An empty password means the store is
// expected to accept commands without AUTH. emitter may be nil.
func NewConnector(addr, password string, dialer ports.Dialer, backoff *Backoff, logger log.Logger, emitter ConnectEventEmitter) *Connector {
	return &Connector{
		addr:     addr,
		password: password,
		dialer:   dialer,
		backoff:  backoff,
		logger:   logger,
		emitter:  emitter,
	}
}

// Connect blocks until a usable session exists.
//
// Dial failures and I/O errors during the handshake are retried forever,
// pausing on the backoff between attempts. A rejected password, or a store
// that wants one when none is configured, is returned at once as an error
// for which domain.IsFatal is true. The loop ends early only when ctx does.
// Connect never returns a session that failed its handshake.
func (c *Connector) Connect(ctx context.Context) (ports.Conn, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := c.dialer.Dial(ctx, c.addr)
		if err != nil {
			c.logger.Warn("cannot connect",
				log.String("addr", c.addr),
				log.Int("attempt", attempt),
				log.Err(err),
			)
			c.emitError(err, false)
			if werr := c.backoff.Wait(ctx); werr != nil {
				return nil, werr
			}
			continue
		}
		c.logger.Info("connected", log.String("addr", c.addr))

		err = c.handshake(conn)
		if err == nil {
			c.backoff.Reset()
			if c.emitter != nil {
				c.emitter.OnConnect(c.addr, attempt)
			}
			return conn, nil
		}

		_ = conn.Close()
		if domain.IsFatal(err) {
			c.logger.Error("giving up on destination", log.String("addr", c.addr), log.Err(err))
			c.emitError(err, true)
			return nil, err
		}

		c.logger.Warn("handshake failed", log.String("addr", c.addr), log.Err(err))
		c.emitError(err, false)
		if werr := c.backoff.Wait(ctx); werr != nil {
			return nil, werr
		}
	}
}

// handshake authenticates when a password is set and otherwise probes with
// PING to catch a store that requires one.
func (c *Connector) handshake(conn ports.Conn) error {
	var replyErr domain.ReplyError

	if c.password != "" {
		reply, err := conn.Do("AUTH", c.password)
		if errors.As(err, &replyErr) {
			return fmt.Errorf("%w: %s", domain.ErrAuthFailed, replyErr)
		}
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		if reply != domain.ReplyOK {
			return fmt.Errorf("%w: unexpected reply %q", domain.ErrAuthFailed, reply)
		}
		c.logger.Info("authenticated")
		return nil
	}

	_, err := conn.Do("PING")
	if errors.As(err, &replyErr) {
		if replyErr.AuthRequired() {
			return fmt.Errorf("%w: %s", domain.ErrAuthRequired, replyErr)
		}
		// Any other error reply still proves the session works.
		c.logger.Warn("unexpected ping reply", log.String("reply", replyErr.Error()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (c *Connector) emitError(err error, fatal bool) {
	if c.emitter != nil {
		c.emitter.OnConnectError(err, fatal)
	}
}
