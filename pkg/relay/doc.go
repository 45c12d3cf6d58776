// Package relay provides an embeddable command relay for Redis protocol stores.
//
// A [Sender] accepts pre-serialized commands from any number of producers,
// buffers them in a bounded queue and forwards them, one at a time, over a
// single connection to the destination. When the connection breaks, the
// command being sent is put back at the tail of the queue and the sender
// reconnects; a command accepted by [Sender.LoadKey] is never dropped on a
// network failure.
//
// # Basic Usage
//
//	cfg := relay.DefaultConfig()
//	cfg.Host, cfg.Port = "10.0.0.7", 9221
//	cfg.Password = os.Getenv("PIKA_PASSWORD")
//
//	s, err := relay.New(cfg, relay.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	for _, k := range keys {
//	    if err := s.LoadCommand(ctx, k, "DEL", k); err != nil {
//	        return err
//	    }
//	}
//	return s.Shutdown(shutdownCtx)
//
// # Backpressure
//
// When the queue holds QueueCapacity commands, LoadKey blocks until the
// sender catches up. Capacity is never enforced by dropping.
//
// # Shutdown
//
// [Sender.Stop] raises the exit flag and returns at once; the sender keeps
// sending until the queue is empty. [Sender.Wait] blocks until that happens.
// [Sender.Shutdown] combines both and gives up when its context expires.
// Reconnection is retried forever, so callers that need a bounded shutdown
// must pass a context with a deadline.
//
// # Fatal Errors
//
// A rejected password ([ErrAuthFailed]) or a store that requires one when
// none is configured ([ErrAuthRequired]) stops the sender without sending
// anything. [Sender.ShouldExit] turns true and [Sender.Err] reports the cause.
//
// # Lifecycle States
//
// A Sender moves through [StateIdle], [StateConnecting], [StateSending],
// [StateReconnecting], [StateDraining] and [StateStopped]. Use
// [Sender.Status] to query the current state, or [WithEventHandler] to be
// told about every change.
package relay
