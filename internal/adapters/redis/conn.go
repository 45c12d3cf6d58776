// Package redis implements ports.Dialer and ports.Conn for Redis protocol
// stores (Redis, Pika, ...) on top of redigo.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/ports"
)

var errNoCommand = errors.New("redis: empty command")

// Dialer opens TCP sessions with fixed timeouts.
// A zero ReadTimeout or WriteTimeout disables that deadline.
type Dialer struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// NewDialer creates a dialer with the given timeouts.
func NewDialer(connectTimeout, readTimeout, writeTimeout time.Duration) *Dialer {
	return &Dialer{
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
	}
}

// Dial connects to addr.
func (d *Dialer) Dial(ctx context.Context, addr string) (ports.Conn, error) {
	nd := net.Dialer{Timeout: d.ConnectTimeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Conn{
		nc:           nc,
		rc:           redis.NewConn(nc, d.ReadTimeout, d.WriteTimeout),
		writeTimeout: d.WriteTimeout,
	}, nil
}

// Conn is one session. redigo handles command encoding and reply parsing;
// pre-serialized frames are written to the socket directly and their reply
// read back through redigo.
type Conn struct {
	nc           net.Conn
	rc           redis.Conn
	writeTimeout time.Duration
}

// Do sends args[0] with the remaining args and returns the reply as a string.
func (c *Conn) Do(args ...string) (string, error) {
	if len(args) == 0 {
		return "", errNoCommand
	}
	rest := make([]interface{}, len(args)-1)
	for i, a := range args[1:] {
		rest[i] = a
	}
	reply, err := redis.String(c.rc.Do(args[0], rest...))
	if errors.Is(err, redis.ErrNil) {
		return "", nil
	}
	return reply, translate(err)
}

// Relay writes frame and reads exactly one reply.
func (c *Conn) Relay(frame []byte) error {
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	_, err := c.rc.Receive()
	return translate(err)
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.rc.Close()
}

// translate turns redigo error replies into domain.ReplyError and leaves
// transport and protocol errors as they are.
func translate(err error) error {
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return domain.ReplyError(replyErr)
	}
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

var (
	_ ports.Dialer = (*Dialer)(nil)
	_ ports.Conn   = (*Conn)(nil)
)
