package mail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"waitlist-server/internal/config"
	"waitlist-server/internal/observability"
)

// Message is a single plaintext email.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	ReplyTo   string
	Subject   string
	Text      string
}

// From returns the formatted sender, e.g. `"Waitlist" <hello@example.com>`.
func (m Message) From() string {
	return FormatAddress(m.FromName, m.FromEmail)
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FormatAddress renders name and address as an RFC 5322 mailbox. Non-ASCII
// names are Q-encoded.
func FormatAddress(name, address string) string {
	if strings.TrimSpace(name) == "" {
		return (&mail.Address{Address: address}).String()
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

// NewSender builds the transport selected by cfg.Provider.
func NewSender(ctx context.Context, cfg config.MailConfig, logger *observability.Logger) (Sender, error) {
	switch cfg.Provider {
	case config.MailProviderLog, "":
		return NewLogSender(logger), nil
	case config.MailProviderSMTP:
		return NewSMTPClient(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, logger), nil
	case config.MailProviderResend:
		return NewResendClient(cfg.Resend.APIKey, logger)
	case config.MailProviderSES:
		return NewSESClient(ctx, SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
