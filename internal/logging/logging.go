// Package logging configures the process-wide slog.Logger. Development
// runs get colorized console output via lmittmann/tint; everything
// else falls back to the plain slog.NewTextHandler.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Init configures slog.Default() for the given level name ("debug",
// "info", "warn", "error") and returns the logger for explicit wiring.
func Init(levelName string, pretty bool) *slog.Logger {
	level := parseLevel(levelName)

	var handler slog.Handler
	if pretty && os.Getenv("NO_COLOR") == "" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			AddSource:  false,
			TimeFormat: "15:04:05",
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
