package mail

import (
	"context"
	"fmt"

	"waitlist-server/internal/observability"

	"github.com/resendlabs/resend-go"
)

type ResendClient struct {
	client *resend.Client
	logger *observability.Logger
}

func NewResendClient(apiKey string, logger *observability.Logger) (*ResendClient, error) {
	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}

	return &ResendClient{
		client: client,
		logger: logger,
	}, nil
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "mail_provider", Value: "resend"},
		observability.Field{Key: "email_to", Value: observability.RedactEmail(msg.To)},
	)

	params := &resend.SendEmailRequest{
		From:    msg.From(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	res, err := c.client.Emails.Send(params)
	if err != nil {
		c.logger.Error(ctx, "failed to send email", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info(ctx, "email sent successfully",
		observability.Field{Key: "message_id", Value: res.Id},
	)
	return nil
}
