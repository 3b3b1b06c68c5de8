// Package logging builds the zap loggers used by the tracker commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultLogsDir is where per-run log files are written
	DefaultLogsDir = "logs"

	logExt     = ".log"
	timeLayout = "15:04:05"
)

// Options configures a logger
type Options struct {
	// LogFile receives every entry at FileLevel and above. Empty disables the file.
	LogFile   string
	FileLevel zapcore.Level
	// Console defaults to stderr
	Console      io.Writer
	ConsoleLevel zapcore.Level
}

// DefaultOptions returns DEBUG to file and INFO to the console
func DefaultOptions(logFile string) Options {
	return Options{
		LogFile:      logFile,
		FileLevel:    zapcore.DebugLevel,
		Console:      os.Stderr,
		ConsoleLevel: zapcore.InfoLevel,
	}
}

// LogPathFor returns the log file that belongs to a run document:
// logs/2024-05-01_10-00-00.log for records/2024-05-01_10-00-00.geojson
func LogPathFor(logsDir, documentPath string) string {
	base := filepath.Base(documentPath)
	return filepath.Join(logsDir, strings.TrimSuffix(base, filepath.Ext(base))+logExt)
}

// New builds a logger teeing the console and, when configured, a log file.
// The returned close function syncs and closes the file.
func New(opts Options) (*zap.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(console)), opts.ConsoleLevel),
	}

	closeFn := func() error { return nil }
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		sink, closeSink, err := zap.Open(opts.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), sink, opts.FileLevel))
		closeFn = func() error {
			err := sink.Sync()
			closeSink()
			return err
		}
	}

	return zap.New(zapcore.NewTee(cores...)), closeFn, nil
}

// NewConsole builds a console-only logger at INFO
func NewConsole(w io.Writer) *zap.Logger {
	logger, _, _ := New(Options{Console: w, ConsoleLevel: zapcore.InfoLevel})
	return logger
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       encodeTime,
		EncodeLevel:      encodeLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func encodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(timeLayout) + "]")
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	name := l.CapitalString()
	if l == zapcore.WarnLevel {
		name = "WARNING"
	}
	enc.AppendString("[" + name + "]")
}
