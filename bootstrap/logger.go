package bootstrap

import (
	"io"
	"time"

	"github.com/artpar/datalayer/config"
	"github.com/rs/zerolog"
)

// NewLogger creates the application logger and sets the global level.
// An unknown level falls back to info.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if err := SetLogLevel(cfg.Level); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetLogLevel changes the global log level.
func SetLogLevel(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
