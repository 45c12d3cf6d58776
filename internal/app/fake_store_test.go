package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/ports"
	"github.com/bft-labs/pikarelay/pkg/log"
)

var errDialRefused = errors.New("dial tcp: connection refused")

// fakeStore is an in-memory destination with scripted failures.
type fakeStore struct {
	mu sync.Mutex

	password     string // non-empty: store requires AUTH
	dialFailures int    // dial attempts to refuse before accepting
	pingFailures int    // PINGs to fail with an I/O error
	failures     map[string]int
	errorReplies map[string]bool

	dials    int
	attempts map[string]int
	sent     []string
	open     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failures:     map[string]int{},
		errorReplies: map[string]bool{},
		attempts:     map[string]int{},
	}
}

func (s *fakeStore) Dial(ctx context.Context, addr string) (ports.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.dialFailures > 0 {
		s.dialFailures--
		return nil, errDialRefused
	}
	s.open++
	return &fakeConn{store: s}, nil
}

func (s *fakeStore) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeStore) Attempts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[key]
}

func (s *fakeStore) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *fakeStore) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type fakeConn struct {
	store  *fakeStore
	authed bool
	closed bool
}

func (c *fakeConn) Do(args ...string) (string, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch args[0] {
	case "AUTH":
		if s.password == "" {
			return "", domain.ReplyError("ERR Client sent AUTH, but no password is set")
		}
		if len(args) < 2 || args[1] != s.password {
			return "", domain.ReplyError("ERR invalid password")
		}
		c.authed = true
		return domain.ReplyOK, nil
	case "PING":
		if s.pingFailures > 0 {
			s.pingFailures--
			return "", io.ErrUnexpectedEOF
		}
		if s.password != "" && !c.authed {
			return "", domain.ReplyError("NOAUTH Authentication required.")
		}
		return "PONG", nil
	}
	return "", domain.ReplyError("ERR unknown command")
}

func (c *fakeConn) Relay(frame []byte) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(frame)
	s.attempts[key]++
	if s.failures[key] > 0 {
		s.failures[key]--
		return io.ErrUnexpectedEOF
	}
	s.sent = append(s.sent, key)
	if s.errorReplies[key] {
		return domain.ReplyError("WRONGTYPE Operation against a key holding the wrong kind of value")
	}
	return nil
}

func (c *fakeConn) Close() error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if !c.closed {
		c.closed = true
		s.open--
	}
	return nil
}

// sleepRecorder replaces real sleeps in backoff.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

// recordingEmitter collects every event the worker and connector emit.
type recordingEmitter struct {
	mu          sync.Mutex
	transitions []string
	connects    int
	connectErrs []error
	fatal       bool
	sendOK      int
	sendErr     int
}

func (e *recordingEmitter) OnStateChange(previous, current State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = append(e.transitions, previous.String()+"->"+current.String())
}

func (e *recordingEmitter) OnConnect(addr string, attempts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connects++
}

func (e *recordingEmitter) OnConnectError(err error, fatal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connectErrs = append(e.connectErrs, err)
	if fatal {
		e.fatal = true
	}
}

func (e *recordingEmitter) OnSendSuccess(cmd domain.Command, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendOK++
}

func (e *recordingEmitter) OnSendError(cmd domain.Command, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendErr++
}

func (e *recordingEmitter) Transitions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.transitions...)
}

func noopLogger() log.Logger {
	return log.NewNoopLogger()
}
