package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bft-labs/pikarelay/internal/domain"
	"github.com/bft-labs/pikarelay/internal/ports"
	"github.com/bft-labs/pikarelay/internal/queue"
	"github.com/bft-labs/pikarelay/pkg/log"
)

// keyPreviewLen bounds how much of a key ends up in a log line.
const keyPreviewLen = 64

// SendEventEmitter is called on send success or failure.
type SendEventEmitter interface {
	OnSendSuccess(cmd domain.Command, duration time.Duration)
	OnSendError(cmd domain.Command, err error)
}

// Worker is the single consumer of a queue. It owns the session to the store
// and sends one command at a time, waiting for its reply before the next.
type Worker struct {
	queue     *queue.Queue
	connector *Connector
	lifecycle *Lifecycle
	logger    log.Logger
	emitter   SendEventEmitter

	conn ports.Conn
}

// NewWorker creates a worker. emitter may be nil.
func NewWorker(q *queue.Queue, connector *Connector, lifecycle *Lifecycle, logger log.Logger, emitter SendEventEmitter) *Worker {
	return &Worker{
		queue:     q,
		connector: connector,
		lifecycle: lifecycle,
		logger:    logger,
		emitter:   emitter,
	}
}

// Run connects and relays commands until the queue is closed and empty.
//
// A failed send puts the command back at the tail of the queue and
// reconnects; it is never dropped. Run returns nil after a full drain, the
// fatal error if the store rejects the credentials (the queue is closed
// first so producers stop blocking), or ctx.Err() if ctx ends first, in
// which case queued commands are left unsent.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("sender starting")

	err := w.run(ctx)
	w.release()

	reason := "queue drained"
	if err != nil {
		reason = err.Error()
	}
	_ = w.lifecycle.TransitionTo(StateStopped, reason)

	w.logger.Info("sender complete",
		log.Int64("elements", w.queue.Elements()),
		log.Int("queued", w.queue.Len()),
	)
	return err
}

func (w *Worker) run(ctx context.Context) error {
	if err := w.lifecycle.TransitionTo(StateConnecting, "worker started"); err != nil {
		return err
	}
	if err := w.connect(ctx); err != nil {
		return err
	}
	w.resume("connected")

	for {
		cmd, err := w.queue.Dequeue(ctx)
		if errors.Is(err, queue.ErrDrained) {
			return nil
		}
		if err != nil {
			return err
		}

		if w.queue.Closed() && w.lifecycle.State() == StateSending {
			_ = w.lifecycle.TransitionTo(StateDraining, "stop requested")
		}

		if err := w.send(cmd); err != nil {
			w.logger.Warn("send failed, reconnecting",
				log.String("key", preview(cmd.Key)),
				log.Err(err),
			)
			w.queue.Requeue(cmd)
			w.release()
			_ = w.lifecycle.TransitionTo(StateReconnecting, err.Error())

			if err := w.connect(ctx); err != nil {
				return err
			}
			w.resume("reconnected")
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	conn, err := w.connector.Connect(ctx)
	if err != nil {
		if domain.IsFatal(err) {
			w.queue.Close()
		}
		return err
	}
	w.conn = conn
	return nil
}

// resume picks Sending or Draining depending on whether a stop was requested.
func (w *Worker) resume(reason string) {
	next := StateSending
	if w.queue.Closed() {
		next = StateDraining
	}
	_ = w.lifecycle.TransitionTo(next, reason)
}

func (w *Worker) send(cmd domain.Command) error {
	start := time.Now()
	err := w.conn.Relay(cmd.Frame)

	// The store answered; what it answered does not matter here.
	var replyErr domain.ReplyError
	if errors.As(err, &replyErr) {
		w.logger.Debug("store replied with error",
			log.String("key", preview(cmd.Key)),
			log.String("reply", replyErr.Error()),
		)
		err = nil
	}

	if err != nil {
		if w.emitter != nil {
			w.emitter.OnSendError(cmd, err)
		}
		return err
	}

	if w.emitter != nil {
		w.emitter.OnSendSuccess(cmd, time.Since(start))
	}
	return nil
}

func (w *Worker) release() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.logger.Debug("close connection", log.Err(err))
	}
	w.conn = nil
}

func preview(key string) string {
	if len(key) > keyPreviewLen {
		key = key[:keyPreviewLen] + "..."
	}
	return strconv.Quote(key)
}
