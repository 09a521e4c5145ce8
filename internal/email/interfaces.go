package email

import (
	"context"
)

// EmailSender defines the interface for sending emails
type EmailSender interface {
	// SendWelcomeEmail sends the welcome email to a new waitlist entry
	SendWelcomeEmail(ctx context.Context, to string) error
}

var _ EmailSender = (*EmailService)(nil)
