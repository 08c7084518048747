package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a console logger tagged with the application name.
func NewLogger(app string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, app)
}

// NewLoggerTo is NewLogger writing to out.
func NewLoggerTo(out io.Writer, app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).With().Timestamp().Str("app", app).Logger()
}
