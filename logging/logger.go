package logging

import (
	"context"
	"log/slog"
)

type Field struct {
	Key   string
	Value any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}

func (NopLogger) Info(string, ...Field) {}

func (NopLogger) Warn(string, ...Field) {}

func (NopLogger) Error(string, ...Field) {}

func With(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}

	return logger
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}

	return SlogLogger{L: l}
}

func (s SlogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }

func (s SlogLogger) Info(msg string, fields ...Field) { s.log(slog.LevelInfo, msg, fields) }

func (s SlogLogger) Warn(msg string, fields ...Field) { s.log(slog.LevelWarn, msg, fields) }

func (s SlogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s SlogLogger) log(level slog.Level, msg string, fields []Field) {
	if s.L == nil {
		return
	}

	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key, f.Value)
	}

	s.L.Log(context.Background(), level, msg, attrs...)
}
