// Package storetest runs an in-process RESP store for tests.
//
// The server answers AUTH and PING the way Pika does, records every other
// command it receives and replies +OK unless the command name asks for
// something else:
//
//	GET      null bulk reply
//	FAIL     -ERR reply
//	GARBAGE  malformed reply line
//	HANG     no reply at all
//	DROP     connection closed
package storetest

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/redcon"
)

// Server is a RESP store listening on a loopback port.
type Server struct {
	ln       net.Listener
	password string

	mu       sync.Mutex
	received [][]string
	drops    map[string]int
	conns    int
}

// Start listens on 127.0.0.1 and serves until the test ends.
// A non-empty password makes every connection AUTH before PING succeeds.
func Start(t testing.TB, password string) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{ln: ln, password: password, drops: map[string]int{}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = redcon.Serve(ln, s.handle, s.accept, func(redcon.Conn, error) {})
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return s
}

// Addr returns the listen address as "host:port".
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Host returns the listen IP.
func (s *Server) Host() string { return s.ln.Addr().(*net.TCPAddr).IP.String() }

// Port returns the listen port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// DropNext makes the server hang up instead of answering the next n
// commands whose first argument is key.
func (s *Server) DropNext(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drops[key] = n
}

// Received returns the arguments of every recorded command in arrival order.
func (s *Server) Received() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.received...)
}

// Commands returns every recorded command as "NAME key", or just "NAME"
// for commands without arguments.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for _, args := range s.received {
		if len(args) > 1 {
			out = append(out, args[0]+" "+args[1])
		} else {
			out = append(out, args[0])
		}
	}
	return out
}

// Conns returns how many connections have been accepted.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) accept(redcon.Conn) bool {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()
	return true
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	// cmd.Args is only valid for the duration of the call.
	args := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = string(a)
	}

	switch strings.ToUpper(args[0]) {
	case "AUTH":
		if len(args) == 2 && args[1] == s.password {
			conn.SetContext(true)
			conn.WriteString("OK")
		} else {
			conn.WriteError("ERR invalid password")
		}
		return
	case "PING":
		if authed, _ := conn.Context().(bool); !authed && s.password != "" {
			conn.WriteError("NOAUTH Authentication required.")
		} else {
			conn.WriteString("PONG")
		}
		return
	}

	var key string
	if len(args) > 1 {
		key = args[1]
	}
	s.mu.Lock()
	if s.drops[key] > 0 {
		s.drops[key]--
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.received = append(s.received, args)
	s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "GET":
		conn.WriteNull()
	case "FAIL":
		conn.WriteError("ERR failed on purpose")
	case "GARBAGE":
		conn.WriteRaw([]byte("?what\r\n"))
	case "HANG":
	case "DROP":
		conn.Close()
	default:
		conn.WriteString("OK")
	}
}
