package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/pikarelay/internal/storetest"
	"github.com/bft-labs/pikarelay/pkg/resp"
)

type recordingHandler struct {
	BaseEventHandler

	mu          sync.Mutex
	states      []string
	connects    int
	connectErrs int
	fatal       bool
	sent        int
	sendErrs    int
}

func (h *recordingHandler) OnStateChange(e StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current.String())
}

func (h *recordingHandler) OnConnect(ConnectEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
}

func (h *recordingHandler) OnConnectError(e ConnectErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connectErrs++
	h.fatal = h.fatal || e.Fatal
}

func (h *recordingHandler) OnSendSuccess(SendSuccessEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent++
}

func (h *recordingHandler) OnSendError(SendErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErrs++
}

func shutdown(t *testing.T, s *Sender) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// storeConfig points a Config at s with intervals short enough for tests.
func storeConfig(s *storetest.Server) Config {
	cfg := DefaultConfig()
	cfg.Host = s.Host()
	cfg.Port = s.Port()
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"negative capacity", func(c *Config) { c.QueueCapacity = -1 }},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }},
		{"negative retry interval", func(c *Config) { c.RetryInterval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			_, err := New(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.Addr() != "127.0.0.1:9221" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9221", cfg.Addr())
	}
	if cfg.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("QueueCapacity = %d, want %d", cfg.QueueCapacity, DefaultQueueCapacity)
	}
	if cfg.ConnectTimeout != time.Second || cfg.RetryInterval != 3*time.Second {
		t.Errorf("timeouts = %v/%v, want 1s/3s", cfg.ConnectTimeout, cfg.RetryInterval)
	}
	if cfg.ReadTimeout != DefaultReadTimeout || cfg.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("read/write timeouts = %v/%v, want defaults", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_ValidateRejectsZeroTimeouts(t *testing.T) {
	for _, modify := range []func(*Config){
		func(c *Config) { c.ReadTimeout = 0 },
		func(c *Config) { c.WriteTimeout = 0 },
	} {
		cfg := DefaultConfig()
		modify(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
		}
	}
}

func TestSender_RelaysEndToEnd(t *testing.T) {
	store := storetest.Start(t, "")
	handler := &recordingHandler{}
	s, err := New(storeConfig(store), WithEventHandler(handler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Status() != StateIdle {
		t.Errorf("Status() = %v, want Idle", s.Status())
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var want []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("user:%d", i)
		if err := s.LoadCommand(ctx, key, "SET", key, "v"); err != nil {
			t.Fatalf("LoadCommand() error = %v", err)
		}
		want = append(want, "SET "+key)
	}
	frame, _ := resp.Encode("DEL", "raw")
	if err := s.LoadKey(ctx, string(frame)); err != nil {
		t.Fatalf("LoadKey() error = %v", err)
	}
	want = append(want, "DEL raw")

	if err := shutdown(t, s); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got := store.Commands(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("received = %v, want %v", got, want)
	}
	if s.Status() != StateStopped {
		t.Errorf("Status() = %v, want Stopped", s.Status())
	}
	if s.QueueSize() != 0 || s.Elements() != int64(len(want)) {
		t.Errorf("QueueSize() = %d, Elements() = %d", s.QueueSize(), s.Elements())
	}
	if !s.ShouldExit() {
		t.Error("ShouldExit() = false after Shutdown")
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.sent != len(want) || handler.connects != 1 {
		t.Errorf("events: sent=%d connects=%d", handler.sent, handler.connects)
	}
}

func TestSender_ReplaysAfterDisconnect(t *testing.T) {
	store := storetest.Start(t, "secret")
	store.DropNext("b", 2)

	cfg := storeConfig(store)
	cfg.Password = "secret"
	handler := &recordingHandler{}
	s, err := New(cfg, WithEventHandler(handler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if err := s.LoadCommand(ctx, k, "INCR", k); err != nil {
			t.Fatalf("LoadCommand() error = %v", err)
		}
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := shutdown(t, s); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got := store.Commands()
	want := []string{"INCR a", "INCR c", "INCR b"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("received = %v, want %v", got, want)
	}
	if store.Conns() != 3 {
		t.Errorf("connections = %d, want 3", store.Conns())
	}
	if s.Elements() != 3 {
		t.Errorf("Elements() = %d, want 3", s.Elements())
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.sendErrs != 2 {
		t.Errorf("send errors = %d, want 2", handler.sendErrs)
	}
}

func TestSender_ErrorReplyCountsAsDelivered(t *testing.T) {
	store := storetest.Start(t, "")
	s, err := New(storeConfig(store))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	_ = s.LoadCommand(ctx, "x", "FAIL", "x")
	_ = s.LoadCommand(ctx, "y", "SET", "y", "1")
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := shutdown(t, s); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := store.Commands(); fmt.Sprint(got) != "[FAIL x SET y]" {
		t.Errorf("received = %v", got)
	}
	if store.Conns() != 1 {
		t.Errorf("connections = %d, want 1", store.Conns())
	}
}

func TestSender_FatalAuthErrors(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"wrong password", "nope", ErrAuthFailed},
		{"missing password", "", ErrAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storetest.Start(t, "secret")
			cfg := storeConfig(store)
			cfg.Password = tt.password
			handler := &recordingHandler{}
			s, err := New(cfg, WithEventHandler(handler))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			_ = s.LoadCommand(context.Background(), "k", "SET", "k", "v")
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Wait(ctx); !errors.Is(err, tt.want) {
				t.Fatalf("Wait() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(s.Err(), tt.want) {
				t.Errorf("Err() = %v", s.Err())
			}
			if !s.ShouldExit() {
				t.Error("ShouldExit() = false after fatal error")
			}
			if s.Status() != StateStopped {
				t.Errorf("Status() = %v, want Stopped", s.Status())
			}
			if len(store.Commands()) != 0 {
				t.Errorf("received = %v, want nothing", store.Commands())
			}
			// Producers must not block once the sender is dead.
			if err := s.LoadKey(context.Background(), "late"); err != nil {
				t.Errorf("LoadKey() after fatal error = %v", err)
			}
			handler.mu.Lock()
			defer handler.mu.Unlock()
			if !handler.fatal {
				t.Error("no fatal connect error event")
			}
		})
	}
}

func TestSender_ShutdownTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.Host = addr.IP.String()
	cfg.Port = addr.Port
	cfg.RetryInterval = 10 * time.Millisecond
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = s.LoadKey(context.Background(), "stuck")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Shutdown() error = %v, want ErrShutdownTimeout", err)
	}
	if s.QueueSize() != 1 {
		t.Errorf("QueueSize() = %d, want 1 abandoned", s.QueueSize())
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after Shutdown")
	}
}

func TestSender_LifecycleErrors(t *testing.T) {
	s, err := New(DefaultConfig(), WithDialer(refusingDialer{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Wait(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Wait() before Start = %v, want ErrNotRunning", err)
	}
	if err := s.LoadKey(context.Background(), ""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("LoadKey(\"\") = %v, want ErrEmptyCommand", err)
	}
	if err := s.LoadCommand(context.Background(), "k"); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("LoadCommand() without args = %v, want ErrEmptyCommand", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := s.Wait(waitCtx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() after cancel = %v, want context.Canceled", err)
	}
}

func TestSender_StopIsIdempotent(t *testing.T) {
	s, err := New(DefaultConfig(), WithDialer(refusingDialer{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Stop()
	s.Stop()
	if !s.ShouldExit() {
		t.Error("ShouldExit() = false after Stop")
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on unstarted sender = %v", err)
	}
}

type refusingDialer struct{}

func (refusingDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	return nil, errors.New("connection refused")
}
