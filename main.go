package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"markestedt/spark/config"
)

// Version is set via -ldflags at build time
var Version = "dev"

// logLevel is shared by the handler so config reloads can change it
var logLevel = new(slog.LevelVar)

func init() {
	// The tray's event loop must own the main thread on macOS
	runtime.LockOSThread()
}

// setupLogging installs the default logger. Logs go to stderr so command
// output on stdout stays machine-readable.
func setupLogging(w io.Writer, cfg config.LoggingConfig) {
	setLogLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func setLogLevel(level string) {
	l, err := config.ParseLevel(level)
	if err != nil {
		slog.Warn("Invalid log level, using info", "level", level, "error", err)
		l = slog.LevelInfo
	}
	logLevel.Set(l)
}

func main() {
	app := newCLIApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
