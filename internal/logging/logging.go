package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Console receives human-readable entries, usually stderr.
	Console io.Writer
	Level   string
	Verbose bool
	// File, when set, receives JSON entries at debug level.
	File string
}

// New builds the process logger. The returned close function flushes and
// closes the log file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	closeFile := func() error { return nil }
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory for %s: %w", path, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		))
		closeFile = f.Close
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() error {
		_ = logger.Sync()
		return closeFile()
	}
	return logger, cleanup, nil
}

func ParseLevel(raw string) (zapcore.Level, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(v)
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", raw)
	}
	return level, nil
}
