// Package obs contains observability utilities: the service logger and the
// tracer provider.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the service. It starts as
// slog.Default so packages can log before InitLogger runs (tests included).
var Logger = slog.Default()

// InitLogger installs a JSON handler on stdout at the given level
// (debug|info|warn|error, default info).
func InitLogger(level string) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	Logger = slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
