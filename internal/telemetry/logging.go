package telemetry

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggingOptions mirrors internal/config.LoggingConfig's fields needed to
// build a handler, without an import-cycle dependency on internal/config.
type LoggingOptions struct {
	Level         string
	FilePath      string
	MaxSizeMB     int
	MaxFiles      int
	EnableConsole bool
	EnableFile    bool
	JSON          bool
	AddSource     bool
}

// NewLogger builds the process logger per §4.1/§4.6: JSON handler in
// production, text otherwise, writing to console and/or a
// lumberjack-rotated file (max_size_mb/max_files), wrapped in the
// non-blocking async sink of asynclog.go so the decision path never
// blocks on log I/O (§4.6, §9 — drop-oldest default).
func NewLogger(opts LoggingOptions) (*slog.Logger, func() error) {
	var writers []io.Writer
	if opts.EnableConsole {
		writers = append(writers, os.Stdout)
	}
	var closeFn func() error = func() error { return nil }
	if opts.EnableFile && opts.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxFiles,
			Compress:   true,
		}
		writers = append(writers, lj)
		closeFn = lj.Close
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	sink := NewAsyncSink(io.MultiWriter(writers...), 4096)

	handlerOpts := &slog.HandlerOptions{Level: levelFromString(opts.Level), AddSource: opts.AddSource}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(sink, handlerOpts)
	} else {
		handler = slog.NewTextHandler(sink, handlerOpts)
	}

	logger := slog.New(handler)
	return logger, func() error {
		sink.Close()
		return closeFn()
	}
}

func levelFromString(level string) slog.Level {
	switch level {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	case "off":
		return slog.Level(1000)
	default:
		return slog.LevelInfo
	}
}
