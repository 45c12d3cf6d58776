package domain

import "errors"

// Domain errors represent error conditions in the pikarelay domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a started sender.
	ErrAlreadyRunning = errors.New("pikarelay: already running")

	// ErrNotRunning is returned when an operation needs a started sender.
	ErrNotRunning = errors.New("pikarelay: not running")

	// ErrShutdownTimeout is returned when the queue could not be drained in time.
	ErrShutdownTimeout = errors.New("pikarelay: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pikarelay: invalid configuration")

	// ErrAuthFailed is returned when the store rejects the configured password.
	ErrAuthFailed = errors.New("pikarelay: invalid password")

	// ErrAuthRequired is returned when the store demands a password and none is configured.
	ErrAuthRequired = errors.New("pikarelay: authentication required")

	// ErrEmptyCommand is returned when a producer hands over an empty payload.
	ErrEmptyCommand = errors.New("pikarelay: empty command")
)

// IsFatal reports whether err is a misconfiguration that will not be resolved by retrying.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrAuthRequired)
}
