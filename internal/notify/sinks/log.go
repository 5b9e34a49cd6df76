// Package sinks contains Sink implementations for the notify hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/siteiq/siteiq/internal/notify"
)

// LogSink emits a structured log line per appended turn. Useful during
// development or audits where metrics alone are too coarse.
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

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt notify.TurnEvent) error {
	s.logger.Info("turn appended",
		zap.String("owner", evt.Owner),
		zap.String("conversation_id", evt.ConversationID),
		zap.String("title", evt.Title),
		zap.Bool("new_conversation", evt.NewConversation),
		zap.Time("at", evt.At),
	)
	return nil
}

// Close is a no-op for the log sink.
func (s *LogSink) Close(context.Context) error { return nil }
