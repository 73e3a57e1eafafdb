package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// Logger is the global slog logger instance
	Logger *slog.Logger = slog.Default()
)

// Init configures the global logger from LOG_LEVEL and LOG_FORMAT.
// Level defaults to info, format to json.
func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter is Init with an explicit destination, used by tests
func InitWithWriter(w io.Writer) {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevelStr),
	}

	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	Logger = slog.New(handler).With("service", "cricket-league-analysis")
	slog.SetDefault(Logger)

	Logger.Debug("Logger initialized", "level", logLevelStr)
}

// ParseLevel maps a level name to a slog level, falling back to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying the given attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
