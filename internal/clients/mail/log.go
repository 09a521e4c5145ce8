package mail

import (
	"context"

	"waitlist-server/internal/observability"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *observability.Logger
}

func NewLogSender(logger *observability.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email delivery skipped, log provider configured",
		observability.Field{Key: "mail_provider", Value: "log"},
		observability.Field{Key: "email_to", Value: observability.RedactEmail(msg.To)},
		observability.Field{Key: "email_from", Value: msg.From()},
		observability.Field{Key: "email_subject", Value: msg.Subject},
		observability.Field{Key: "email_body_bytes", Value: len(msg.Text)},
	)
	return nil
}
