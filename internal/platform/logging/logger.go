package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing to stdout at the provided level. Unknown
// level names fall back to info.
func New(level string) *slog.Logger {
	var programLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		programLevel = slog.LevelDebug
	case "warn", "warning":
		programLevel = slog.LevelWarn
	case "error":
		programLevel = slog.LevelError
	default:
		programLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel})
	return slog.New(handler)
}
