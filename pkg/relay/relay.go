package relay

import (
	"context"
	"fmt"
	"sync"

	redisAdapter "github.com/bft-labs/pikarelay/internal/adapters/redis"
	"github.com/bft-labs/pikarelay/internal/app"
	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/queue"
	"github.com/bft-labs/pikarelay/pkg/log"
	"github.com/bft-labs/pikarelay/pkg/resp"
)

// Sender relays queued commands to one destination store.
// Use New() to create an instance, then Start() to begin sending.
type Sender struct {
	config    Config
	queue     *queue.Queue
	lifecycle *app.Lifecycle
	worker    *app.Worker
	logger    log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a Sender with the given configuration.
// Zero fields take their defaults. The sender is created in StateIdle and
// already accepts commands; call Start() to begin sending them.
func New(cfg Config, opts ...Option) (*Sender, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = redisAdapter.NewDialer(cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
	}

	logger := o.logger.With(log.Int("sender", cfg.ID))
	emitter := &eventEmitterWrapper{senderID: cfg.ID, handler: o.eventHandler}

	q := queue.New(cfg.QueueCapacity, cfg.PollInterval)
	lifecycle := app.NewLifecycle(logger, emitter)
	connector := app.NewConnector(cfg.Addr(), cfg.Password, o.dialer,
		app.NewFixedBackoff(cfg.RetryInterval), logger, emitter)
	worker := app.NewWorker(q, connector, lifecycle, logger, emitter)

	return &Sender{
		config:    cfg,
		queue:     q,
		lifecycle: lifecycle,
		worker:    worker,
		logger:    logger,
	}, nil
}

// Start launches the worker in the background and returns immediately.
// Cancelling ctx aborts the worker without draining; use Stop or Shutdown
// for an orderly end. A Sender can be started once.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return domain.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()

		err := s.worker.Run(runCtx)
		if domain.IsFatal(err) {
			s.logger.Error("sender stopped", log.Err(err))
		}

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()

	return nil
}

// LoadKey queues key as a ready-to-send frame.
//
// It blocks while the queue is full, until the worker makes room, Stop is
// called, or ctx ends. Once a stop is requested the command is still
// accepted, so a producer racing with Stop never loses data it was told
// was queued. Empty keys are rejected with ErrEmptyCommand.
func (s *Sender) LoadKey(ctx context.Context, key string) error {
	if key == "" {
		return domain.ErrEmptyCommand
	}
	return s.queue.Enqueue(ctx, domain.CommandFromKey(key))
}

// LoadCommand encodes args as a RESP request and queues it under key.
// key is only used in logs and events.
func (s *Sender) LoadCommand(ctx context.Context, key string, args ...string) error {
	frame, err := resp.Encode(args...)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmptyCommand, err)
	}
	return s.queue.Enqueue(ctx, domain.NewCommand(key, frame))
}

// Stop raises the exit flag and returns at once. The worker keeps sending
// until the queue is empty. Stop can be called any number of times.
func (s *Sender) Stop() {
	if s.queue.Closed() {
		return
	}
	s.queue.Close()
	s.logger.Info("stop requested", log.Int("queued", s.queue.Len()))
}

// Wait blocks until the worker has stopped or ctx ends.
// It returns the error that stopped the worker, nil after a full drain.
func (s *Sender) Wait(ctx context.Context) error {
	done := s.Done()
	if done == nil {
		return domain.ErrNotRunning
	}
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the sender and waits for the queue to drain.
// If ctx ends first the worker is cancelled, queued commands are abandoned
// and ErrShutdownTimeout is returned. The in-flight command still holds
// the worker until its read or write deadline fires, so Shutdown can
// outlast ctx by up to one of those timeouts. A sender that was never
// started returns nil.
func (s *Sender) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	done, cancel := s.done, s.cancel
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, abandoning queued commands",
			log.Int("queued", s.queue.Len()))
		cancel()
		<-done
		return domain.ErrShutdownTimeout
	}
}

// Done returns a channel closed when the worker stops, or nil before Start.
func (s *Sender) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error that stopped the worker, if any.
func (s *Sender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Sender) Status() State {
	return convertState(s.lifecycle.State())
}

// ID returns the configured sender ID.
func (s *Sender) ID() int {
	return s.config.ID
}

// Addr returns the destination address.
func (s *Sender) Addr() string {
	return s.config.Addr()
}

// QueueSize returns the number of commands waiting to be sent.
func (s *Sender) QueueSize() int {
	return s.queue.Len()
}

// ShouldExit reports whether Stop was called or a fatal error occurred.
func (s *Sender) ShouldExit() bool {
	return s.queue.Closed()
}

// Elements returns the number of commands taken from the queue minus the
// number put back after a failed send.
func (s *Sender) Elements() int64 {
	return s.queue.Elements()
}
