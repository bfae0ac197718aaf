package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ledship/pkg/log"
)

var logger = log.NewConsoleAdapter(os.Stderr, zerolog.InfoLevel).Logger()

// Logger returns the CLI logger.
func Logger() zerolog.Logger {
	return logger
}

// SetLogLevel changes the level of the CLI logger.
func SetLogLevel(raw string) error {
	lvl, err := log.ParseLevel(raw)
	if err != nil {
		return err
	}
	logger = logger.Level(lvl)
	return nil
}
