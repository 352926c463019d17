// Package postgres - адаптер pgx tracelog → slog.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/tracelog"
)

// TraceLogger строит pgx-трейсер, пишущий statements и события соединения
// в структурированный лог. Уровень tracelog задаёт детальность со стороны
// pgx; уровень самого агрегата slog применяется как обычно.
//
// Example:
//
//	tracer := postgres.TraceLogger(logger, tracelog.LogLevelDebug)
//	pool, err := postgres.NewPoolWithTracer(ctx, cfg, tracer)
func TraceLogger(logger *slog.Logger, level tracelog.LogLevel) *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger:   slogTracer{logger: logger},
		LogLevel: level,
	}
}

// slogTracer реализует tracelog.Logger поверх *slog.Logger.
type slogTracer struct {
	logger *slog.Logger
}

func (t slogTracer) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}

	var lvl slog.Level
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		lvl = slog.LevelDebug
	case tracelog.LogLevelInfo:
		lvl = slog.LevelInfo
	case tracelog.LogLevelWarn:
		lvl = slog.LevelWarn
	default:
		lvl = slog.LevelError
	}

	t.logger.LogAttrs(ctx, lvl, msg, attrs...)
}
