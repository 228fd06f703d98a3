// Package logging builds the console logger used for progress and diagnostics
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options for the console logger
type Options struct {
	Debug bool
	Quiet bool
	Color bool
}

// NewCliLogger logs human readable lines to w. Debug wins over Quiet.
func NewCliLogger(w io.Writer, opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	switch {
	case opts.Debug:
		level = zapcore.DebugLevel
	case opts.Quiet:
		level = zapcore.WarnLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		NameKey:          "logger",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "  ",
	}
	if opts.Color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if opts.Debug {
		encoderConfig.TimeKey = "time"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// NewStderrLogger logs to stderr, with colored levels when stderr is a terminal
func NewStderrLogger(debug, quiet bool) *zap.Logger {
	return NewCliLogger(os.Stderr, Options{
		Debug: debug,
		Quiet: quiet,
		Color: IsTerminal(os.Stderr),
	})
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
