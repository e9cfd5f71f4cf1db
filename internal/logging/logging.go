package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a sugared zap logger shared by the CLI, the pipeline and the
// HTTP server.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger writes human readable logs to stderr. Verbose enables debug
// level and caller annotations.
func NewLogger(verbose bool) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if verbose {
		opts = append(opts, zap.AddCaller())
	}

	return &Logger{zap.New(core, opts...).Sugar()}
}

// NewJSONLogger writes production JSON logs to stderr.
func NewJSONLogger(verbose bool) *Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return NewLogger(verbose)
	}
	return &Logger{logger.Sugar()}
}

// discards everything, for tests
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l.SugaredLogger.Named(name)}
}

func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{l.SugaredLogger.With(args...)}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}
