package usecase

import (
	"context"
	"log/slog"

	"fallback-chat/internal/domain"
)

// Observer receives one event per state transition of a generation request.
// Returned errors are logged and never change the generation result.
type Observer interface {
	Observe(ctx context.Context, evt domain.GenerationEvent) error
}

type ObserverFunc func(ctx context.Context, evt domain.GenerationEvent) error

func (f ObserverFunc) Observe(ctx context.Context, evt domain.GenerationEvent) error {
	return f(ctx, evt)
}

// LogObserver writes generation events to a slog.Logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(ctx context.Context, evt domain.GenerationEvent) error {
	level := slog.LevelInfo
	switch evt.Kind {
	case domain.EventFallbackTriggered:
		level = slog.LevelWarn
	case domain.EventTotalFailure:
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("request_id", evt.RequestID),
		slog.String("event", string(evt.Kind)),
		slog.String("model", evt.Model),
		slog.Int64("latency_ms", evt.Latency.Milliseconds()),
	}
	if evt.Reason != "" {
		attrs = append(attrs, slog.String("reason", evt.Reason))
	}
	if evt.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", evt.StatusCode))
	}
	o.logger.LogAttrs(ctx, level, "generation event", attrs...)
	return nil
}
