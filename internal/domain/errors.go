package domain

import "errors"

// Domain errors represent error conditions in the ledship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("ledship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("ledship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("ledship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("ledship: invalid configuration")

	// ErrInstanceLocked is returned when another instance holds the lock file.
	ErrInstanceLocked = errors.New("ledship: another instance is already running")

	// ErrTargetOutOfRange is returned when a binary device maps pixels past
	// its declared LED count.
	ErrTargetOutOfRange = errors.New("ledship: mapping exceeds number_of_leds")

	// ErrTransport is returned when a publish or datagram send fails.
	ErrTransport = errors.New("ledship: transport error")
)
