package notification

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the log. Used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"user_id", n.UserID,
		"kind", n.Kind,
		"payload", n.Payload,
	)
	return nil
}
