package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Logs go to stderr so the console table owns stdout.
var output io.Writer = os.Stderr

func New() zerolog.Logger {
	return SetLevel(levelFromEnv())
}

func SetLevel(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var Module = fx.Provide(New)
