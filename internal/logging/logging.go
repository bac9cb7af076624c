// Package logging provides the structured logger used by every module in
// the brain, wrapping zap the same way go.viam.com/rdk/logging does.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors go.viam.com/rdk/logging.Level: a small enum with
// string/JSON round-tripping.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// LevelFromString parses a level name, tolerating the "warning" alias.
func LevelFromString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == string(data) {
		return fmt.Errorf("logging: level must be a JSON string, got %q", data)
	}
	parsed, err := LevelFromString(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the dependency-injected logging capability every module takes
// at construction, matching go.viam.com/rdk/logging.Logger's shape.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger at the given minimum level, writing console-encoded
// output, mirroring the teacher's development logger configuration.
func New(name string, level Level) Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	base, err := cfg.Build()
	if err != nil {
		// Should not happen with the static development config; fall back
		// to a no-op core rather than panicking a production process.
		base = zap.NewNop()
	}
	return &zapLogger{sugar: base.Sugar().Named(name)}
}

func (l *zapLogger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...)}
}

// NewTestLogger returns a Logger suitable for unit tests: debug level,
// writing to the test process's stderr via zap's development config.
func NewTestLogger() Logger {
	return New("test", DEBUG)
}
