// Package logging builds the process logger: JSON files rotated by
// lumberjack plus a console stream.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how much to log.
type Options struct {
	Level string // debug, info, warn, error
	Dir   string // empty disables file output
}

// New returns a sugared logger writing errors to error.log, everything below
// error to app.log, and all enabled levels to stdout.
func New(opts Options) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(config)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl < zapcore.ErrorLevel
	})

	cores := []zapcore.Core{
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stdout), level),
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cores = append(cores,
			zapcore.NewCore(jsonEncoder, zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, "error.log"),
				MaxSize:    100, // megabytes
				MaxBackups: 3,
				MaxAge:     7, // days
				Compress:   true,
			}), highPriority),
			zapcore.NewCore(jsonEncoder, zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, "app.log"),
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     7,
				Compress:   true,
				LocalTime:  true,
			}), lowPriority),
		)
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return logger.Sugar(), nil
}
