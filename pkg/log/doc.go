// Package log provides the logging abstraction used across ledship.
//
// Components log through the [Logger] interface with typed [Field] values.
// A zerolog adapter is provided for production use and a no-op logger for
// tests and embedding applications that do not want output.
//
//	logger := log.NewConsoleAdapter(os.Stderr, zerolog.InfoLevel)
//	logger.Warn("receive buffer size might be too low", log.Int("bytes", n))
//
// Use [ParseLevel] to turn "debug", "warn", ... from flags or the
// environment into a zerolog level.
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
