package ports

import "context"

// Dialer opens sessions to the destination store.
type Dialer interface {
	// Dial connects to addr ("host:port"). Implementations apply their own
	// connect timeout; ctx cancellation aborts the attempt.
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Conn is a single strict request/reply session.
// It is not safe for concurrent use; the worker that dialed it is its only user.
type Conn interface {
	// Do sends one command built from args and returns its reply as a string.
	// An error reply from the store is returned as a domain.ReplyError.
	Do(args ...string) (string, error)

	// Relay writes a pre-serialized frame and waits for exactly one reply.
	// The reply value is discarded; an error reply is returned as a
	// domain.ReplyError. Any other error means the session is broken.
	Relay(frame []byte) error

	// Close releases the session.
	Close() error
}
