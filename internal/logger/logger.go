package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

// zapLogger wraps a *zap.SugaredLogger and implements Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Ensure zapLogger satisfies Logger.
var _ Logger = (*zapLogger)(nil)

// Debug logs at DebugLevel. keysAndValues are alternating key/value pairs.
func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at InfoLevel.
func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at WarnLevel.
func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at ErrorLevel.
func (l *zapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With returns a Logger that adds keysAndValues to every entry.
func (l *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

// Options controls how Init builds the logger.
type Options struct {
	Level       string // debug, info, warn or error
	Development bool
}

// globalSugar holds the SugaredLogger built by Init.
var globalSugar *zap.SugaredLogger

// Init creates a Zap logger writing to stderr and returns it behind the
// Logger interface. Call this once at startup.
func Init(opts Options) (Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// Colors only make sense on a terminal.
	if opts.Development && term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapLog, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	sugar := zapLog.Sugar()
	globalSugar = sugar
	return &zapLogger{sugar: sugar}, nil
}

// Cleanup flushes any buffered log entries. Call at program exit.
func Cleanup() {
	if globalSugar != nil {
		_ = globalSugar.Sync()
	}
}

// Global returns the Logger created by Init, or a no-op logger before Init.
func Global() Logger {
	if globalSugar == nil {
		return Nop()
	}
	return &zapLogger{sugar: globalSugar}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// New wraps an existing zap logger, e.g. one built by zaptest or zap/zaptest/observer.
func New(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}
