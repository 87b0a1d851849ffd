package logger

import (
	"log/slog"
	"os"
)

// Logger emits one JSON line per event, tagged with the service name.
type Logger struct {
	sl *slog.Logger
}

func New(service string) *Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	host, _ := os.Hostname()
	return &Logger{sl: slog.New(h).With("service", service, "hostname", host)}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.sl.Info(action, attrs(fields)...)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.sl.Debug(action, attrs(fields)...)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.sl.Error(action, args...)
}

func attrs(fields map[string]any) []any {
	out := make([]any, 0, len(fields))
	for k, v := range fields {
		out = append(out, slog.Any(k, v))
	}
	return out
}
