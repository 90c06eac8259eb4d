// Package logging builds the zap logger shared by every component.
//
// Diagnostics go to stderr so they never interleave with the chat transcript
// on stdout.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from config.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.Format != "json" && cfg.Format != "console" {
		return nil, fmt.Errorf("format must be 'json' or 'console', got %q", cfg.Format)
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(out), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Sync flushes the logger, ignoring the harmless errors returned when
// stdout/stderr is a terminal.
func Sync(l *zap.Logger) error {
	err := l.Sync()
	var errno syscall.Errno
	if err != nil && errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
