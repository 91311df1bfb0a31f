package logger

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// whatsmeowLogger routes protocol library logs through slog.
type whatsmeowLogger struct {
	log    *slog.Logger
	module string
}

// WhatsApp adapts an slog logger to the whatsmeow logging interface.
func WhatsApp(log *slog.Logger, module string) waLog.Logger {
	if log == nil {
		log = slog.Default()
	}

	return &whatsmeowLogger{
		log:    log.With("component", "whatsmeow", "module", module),
		module: module,
	}
}

func (l *whatsmeowLogger) Debugf(msg string, args ...any) {
	l.emit(slog.LevelDebug, msg, args)
}

func (l *whatsmeowLogger) Infof(msg string, args ...any) {
	l.emit(slog.LevelInfo, msg, args)
}

func (l *whatsmeowLogger) Warnf(msg string, args ...any) {
	l.emit(slog.LevelWarn, msg, args)
}

func (l *whatsmeowLogger) Errorf(msg string, args ...any) {
	l.emit(slog.LevelError, msg, args)
}

func (l *whatsmeowLogger) Sub(module string) waLog.Logger {
	name := module
	if l.module != "" {
		name = l.module + "/" + module
	}

	return &whatsmeowLogger{
		log:    l.log.With("module", name),
		module: name,
	}
}

func (l *whatsmeowLogger) emit(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}

	l.log.Log(ctx, level, fmt.Sprintf(msg, args...))
}
