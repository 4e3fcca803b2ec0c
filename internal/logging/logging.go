package logging

import (
	"log/slog"
	"os"

	pionlog "github.com/pion/logging"
)

// Init installs the default slog logger. The level comes from LOG_LEVEL;
// debug forces the debug level regardless of the environment.
func Init(debug bool) slog.Level {
	level := slog.LevelError // default: production only shows errors

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return level
}

// PionFactory returns a logger factory for pion internals at the level
// matching the slog level.
func PionFactory(level slog.Level) pionlog.LoggerFactory {
	f := pionlog.NewDefaultLoggerFactory()
	f.Writer = os.Stderr

	switch {
	case level <= slog.LevelDebug:
		f.DefaultLogLevel = pionlog.LogLevelDebug
	case level <= slog.LevelInfo:
		f.DefaultLogLevel = pionlog.LogLevelInfo
	case level <= slog.LevelWarn:
		f.DefaultLogLevel = pionlog.LogLevelWarn
	default:
		f.DefaultLogLevel = pionlog.LogLevelError
	}
	return f
}
