// Package logger builds the diagnostic logger. Output never goes to stdout,
// which carries the local JSON-RPC stream.
package logger

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	logr.Logger
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New creates a console logger writing to stderr.
func New(name string, level string) (*Logger, error) {
	return NewWithWriter(name, level, os.Stderr)
}

// NewWithWriter creates a console logger writing to w.
func NewWithWriter(name string, level string, w io.Writer) (*Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	atomicLevel := zap.NewAtomicLevel()
	ret := &Logger{atomicLevel: atomicLevel}
	if err := ret.SetLevel(level); err != nil {
		return nil, err
	}
	zapLogger := zap.New(zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(w)), atomicLevel))
	ret.Logger = zapr.NewLogger(zapLogger).WithName(name)
	ret.flush = func() {
		_ = zapLogger.Sync()
	}
	return ret, nil
}

// SetLevel changes the minimum level; accepts debug, info, warn and error.
func (l *Logger) SetLevel(level string) error {
	if level == "" {
		level = "info"
	}
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	l.atomicLevel.SetLevel(zapLevel)
	return nil
}

func (l *Logger) Flush() {
	if l.flush != nil {
		l.flush()
	}
}
