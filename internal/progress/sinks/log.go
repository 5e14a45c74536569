package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("total", evt.Total),
			zap.Int("completed", evt.Completed),
		}
		if evt.Result != nil {
			fields = append(fields,
				zap.String("channel_id", evt.Result.ChannelID),
				zap.String("channel", evt.Result.ChannelName),
				zap.String("status", string(evt.Result.Status)),
			)
			if evt.Result.ResponseTimeMs != nil {
				fields = append(fields, zap.Int64("response_ms", *evt.Result.ResponseTimeMs))
			}
			if evt.Result.ErrorMessage != "" {
				fields = append(fields, zap.String("reason", evt.Result.ErrorMessage))
			}
		}
		if evt.Stage == progress.StageRunDone {
			fields = append(fields, zap.String("run_status", string(evt.Status)), zap.Duration("dur", evt.Dur))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
