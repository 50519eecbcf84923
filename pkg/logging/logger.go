// Package logging provides structured logging for the harness, generators,
// and issuers: a thin zerolog wrapper with level/format configuration and a
// key-value Debug/Info/Warn/Error/Fatal surface.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a Logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is the wire format log lines are written in.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config controls how NewLogger builds its zerolog.Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger is a structured logger wrapping zerolog.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger builds a Logger per cfg, defaulting to stdout/info/json.
func NewLogger(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var output io.Writer = cfg.Output
	if cfg.Format == FormatText {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339, NoColor: false}
	}

	zlog := zerolog.New(output).With().Timestamp().Logger()
	zlog = zlog.Level(levelOf(cfg.Level))

	return &Logger{logger: zlog}
}

func levelOf(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...any) { l.emit(l.logger.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...any)  { l.emit(l.logger.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...any)  { l.emit(l.logger.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...any) { l.emit(l.logger.Error(), msg, fields) }
func (l *Logger) Fatal(msg string, fields ...any) { l.emit(l.logger.Fatal(), msg, fields) }

// WithField returns a child Logger carrying one extra structured field,
// e.g. logger.WithField("run_id", id).
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []any) {
	if len(fields)%2 != 0 {
		event.Str("log_error", "odd number of fields")
		event.Msg(msg)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("log_error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}
		event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}
